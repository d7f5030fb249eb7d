package authstate

import (
	"context"

	"github.com/goliatone/go-router"
)

// StateLocalsKey is the router locals key the guard stores the admitted state under
const StateLocalsKey = "auth_state"

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// GetRouterState extracts the admitted AuthState from the router context
func GetRouterState(ctx router.Context) (AuthState, bool) {
	raw := ctx.Locals(StateLocalsKey)
	if raw == nil {
		return AuthState{}, false
	}
	state, ok := raw.(AuthState)
	return state, ok
}

// GetRouterUser returns the user admitted by the guard, if any
func GetRouterUser(ctx router.Context) (*User, bool) {
	state, ok := GetRouterState(ctx)
	if !ok || state.User == nil {
		return nil, false
	}
	return state.User, true
}

// HasRole reports whether the admitted user carries one of roles
func HasRole(ctx router.Context, roles ...Role) bool {
	user, ok := GetRouterUser(ctx)
	if !ok {
		return false
	}
	for _, role := range roles {
		if user.Role == role {
			return true
		}
	}
	return false
}
