package gotrue

import (
	"strings"
	"time"

	authstate "github.com/goliatone/go-auth-state"
)

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (t tokenResponse) session(now time.Time) *authstate.Session {
	session := &authstate.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		User:         t.User.toUser(),
	}

	switch {
	case t.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		session.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	return session
}

// toUser maps the service user. The application role lives in app_metadata,
// falling back to user_metadata; the top level role is the database role.
func (u *userResponse) toUser() *authstate.User {
	if u == nil {
		return nil
	}

	role := metadataString(u.AppMetadata, "role")
	if role == "" {
		role = metadataString(u.UserMetadata, "role")
	}

	var meta map[string]any
	if len(u.UserMetadata) > 0 {
		meta = make(map[string]any, len(u.UserMetadata))
		for k, v := range u.UserMetadata {
			meta[k] = v
		}
	}

	return &authstate.User{
		ID:        u.ID,
		Email:     u.Email,
		Role:      role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Metadata:  meta,
	}
}

func metadataString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	v, ok := meta[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
