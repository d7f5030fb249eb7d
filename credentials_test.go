package authstate_test

import (
	"testing"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/stretchr/testify/assert"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   authstate.Credentials
		wantErr string
	}{
		{
			name:  "valid",
			creds: authstate.Credentials{Email: "a@b.com", Password: "secret1"},
		},
		{
			name:  "minimum password length",
			creds: authstate.Credentials{Email: "a@b.com", Password: "123456"},
		},
		{
			name:    "missing email",
			creds:   authstate.Credentials{Password: "secret1"},
			wantErr: "email is required",
		},
		{
			name:    "malformed email",
			creds:   authstate.Credentials{Email: "a-at-b", Password: "secret1"},
			wantErr: "must be a valid email address",
		},
		{
			name:    "missing password",
			creds:   authstate.Credentials{Email: "a@b.com"},
			wantErr: "password is required",
		},
		{
			name:    "short password",
			creds:   authstate.Credentials{Email: "a@b.com", Password: "12345"},
			wantErr: "password must be at least 6 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCredentialsNormalize(t *testing.T) {
	creds := authstate.Credentials{Email: "  a@b.com\n", Password: " pass word "}.Normalize()

	assert.Equal(t, "a@b.com", creds.GetIdentifier())
	assert.Equal(t, " pass word ", creds.GetPassword())
	assert.False(t, creds.GetExtendedSession())
}
