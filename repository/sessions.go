package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultSessionKey identifies the console session row
const DefaultSessionKey = "default"

// SessionModel is the Bun model for the persisted session.
type SessionModel struct {
	bun.BaseModel `bun:"table:auth_sessions"`

	StorageKey   string          `bun:"storage_key,pk"`
	AccessToken  string          `bun:"access_token,notnull"`
	RefreshToken string          `bun:"refresh_token"`
	TokenType    string          `bun:"token_type"`
	ExpiresAt    *time.Time      `bun:"expires_at,nullzero"`
	User         *authstate.User `bun:"user_data,type:jsonb"`
	UpdatedAt    time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

// SessionStore implements authstate.SessionStorage using Bun.
type SessionStore struct {
	db  bun.IDB
	key string
}

// NewSessionStore creates a session store for key (default: DefaultSessionKey).
func NewSessionStore(db bun.IDB, key string) *SessionStore {
	if key == "" {
		key = DefaultSessionKey
	}
	return &SessionStore{db: db, key: key}
}

// Load implements authstate.SessionStorage.
func (s *SessionStore) Load(ctx context.Context) (*authstate.Session, error) {
	var model SessionModel
	err := s.db.NewSelect().
		Model(&model).
		Where("storage_key = ?", s.key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}

	session := &authstate.Session{
		AccessToken:  model.AccessToken,
		RefreshToken: model.RefreshToken,
		TokenType:    model.TokenType,
		User:         model.User,
	}
	if model.ExpiresAt != nil {
		session.ExpiresAt = *model.ExpiresAt
	}
	return session, nil
}

// Save implements authstate.SessionStorage.
func (s *SessionStore) Save(ctx context.Context, session *authstate.Session) error {
	if session == nil {
		return s.Clear(ctx)
	}

	model := &SessionModel{
		StorageKey:   s.key,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    session.TokenType,
		User:         session.User.Clone(),
		UpdatedAt:    time.Now(),
	}
	if !session.ExpiresAt.IsZero() {
		expiresAt := session.ExpiresAt
		model.ExpiresAt = &expiresAt
	}

	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (storage_key) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("token_type = EXCLUDED.token_type").
		Set("expires_at = EXCLUDED.expires_at").
		Set("user_data = EXCLUDED.user_data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save session")
	}
	return nil
}

// Clear implements authstate.SessionStorage.
func (s *SessionStore) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("storage_key = ?", s.key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session")
	}
	return nil
}
