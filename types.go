package authstate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is the application role attached to a user by the session provider
type Role = string

const (
	// RoleAdmin manages the whole console
	RoleAdmin Role = "admin"
	// RoleOperator works the production floor
	RoleOperator Role = "operario"
	// RoleDriver handles deliveries
	RoleDriver Role = "repartidor"
)

// User is the identity record carried by an authenticated session
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Role      Role           `json:"role,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// UUID parses the user ID. Providers that do not issue UUIDs return an error.
func (u *User) UUID() (uuid.UUID, error) {
	if u == nil {
		return uuid.Nil, ErrUnableToParseData
	}
	return uuid.Parse(u.ID)
}

// Clone returns a deep enough copy so snapshots never share mutable state
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Metadata != nil {
		out.Metadata = make(map[string]any, len(u.Metadata))
		for k, v := range u.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Session is the proof of authentication issued by the provider
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// Clone copies the session and its user
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.User = s.User.Clone()
	return &out
}

// Valid reports whether the session identifies a user
func (s *Session) Valid() bool {
	return s != nil && s.User != nil && s.User.ID != ""
}

// Expired reports whether the access token expired at the given time.
// A zero ExpiresAt means the provider did not report one.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// SessionEvent names the reason a session change notification fired
type SessionEvent string

const (
	EventInitialSession SessionEvent = "INITIAL_SESSION"
	EventSignedIn       SessionEvent = "SIGNED_IN"
	EventSignedOut      SessionEvent = "SIGNED_OUT"
	EventTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
	EventUserUpdated    SessionEvent = "USER_UPDATED"
)

// SessionChangeFunc receives session change notifications. A nil session
// means there is no authenticated session.
type SessionChangeFunc func(event SessionEvent, session *Session)

// Subscription is returned by OnSessionChange
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to the Subscription interface
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// SessionProvider is the remote identity service the store coordinates with.
// OnSessionChange must fire at least once per session establishment and
// termination and may fire with an unchanged session.
type SessionProvider interface {
	GetCurrentSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	OnSessionChange(fn SessionChangeFunc) Subscription
}

// SessionStorage keeps the last issued session across process restarts
type SessionStorage interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}

// StateReader is the read side of the Store the guard depends on
type StateReader interface {
	State() AuthState
	WaitSettled(ctx context.Context) (AuthState, error)
}
