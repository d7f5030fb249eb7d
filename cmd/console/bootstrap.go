package main

import (
	"context"
	"strings"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/goliatone/go-auth-state/provider/local"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// BootstrapAdminMessage seeds the first console account.
type BootstrapAdminMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (e BootstrapAdminMessage) Type() string { return "user.bootstrap_admin" }

// BootstrapAdminHandler creates the admin account unless the email is taken.
// The account ID is derived from the email so restarts against a fresh
// database produce the same user.
type BootstrapAdminHandler struct {
	users  local.Users
	logger authstate.Logger
}

func NewBootstrapAdminHandler(users local.Users, logger authstate.Logger) *BootstrapAdminHandler {
	_, logger = authstate.ResolveLogger("console.bootstrap", nil, logger)
	return &BootstrapAdminHandler{users: users, logger: logger}
}

func (h *BootstrapAdminHandler) Execute(ctx context.Context, event BootstrapAdminMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin bootstrap",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *BootstrapAdminHandler) execute(ctx context.Context, event BootstrapAdminMessage) error {
	email := strings.ToLower(strings.TrimSpace(event.Email))
	if email == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	existing, err := h.users.GetByEmail(ctx, email)
	if err == nil {
		h.logger.Debug("admin account present", "user_id", existing.ID)
		return nil
	}
	if !local.IsUserNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up admin account")
	}

	hash, err := local.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid admin password")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash admin password")
	}

	id, err := hashid.NewUUID(email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive admin id")
	}

	role := event.Role
	if role == "" {
		role = authstate.RoleAdmin
	}

	record, err := h.users.Create(ctx, &local.UserRecord{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create admin account")
	}

	h.logger.Info("admin account created", "user_id", record.ID, "email", record.Email)
	return nil
}
