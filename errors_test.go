package authstate_test

import (
	"errors"
	"testing"

	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		signIn     bool
		signOut    bool
		init       bool
		validation bool
	}{
		{
			name:   "sign in sentinel",
			err:    authstate.ErrSignIn,
			signIn: true,
		},
		{
			name:       "validation sentinel",
			err:        authstate.ErrInvalidCredentials,
			signIn:     true,
			validation: true,
		},
		{
			name:    "sign out sentinel",
			err:     authstate.ErrSignOut,
			signOut: true,
		},
		{
			name: "initialization sentinel",
			err:  authstate.ErrInitialization,
			init: true,
		},
		{
			name: "plain error",
			err:  errors.New("sign in failed"),
		},
		{
			name: "nil error",
			err:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.signIn, authstate.IsSignInError(tt.err))
			assert.Equal(t, tt.signOut, authstate.IsSignOutError(tt.err))
			assert.Equal(t, tt.init, authstate.IsInitializationError(tt.err))
			assert.Equal(t, tt.validation, authstate.IsValidationError(tt.err))
		})
	}
}

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrSignIn", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, authstate.ErrSignIn.Category)
		assert.Equal(t, authstate.TextCodeSignIn, authstate.ErrSignIn.TextCode)
		assert.Equal(t, goerrors.CodeUnauthorized, authstate.ErrSignIn.Code)
	})

	t.Run("ErrInvalidCredentials", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, authstate.ErrInvalidCredentials.Category)
		assert.Equal(t, authstate.TextCodeInvalidCredentials, authstate.ErrInvalidCredentials.TextCode)
		assert.Equal(t, goerrors.CodeBadRequest, authstate.ErrInvalidCredentials.Code)
	})

	t.Run("ErrSignOut", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryOperation, authstate.ErrSignOut.Category)
		assert.Equal(t, authstate.TextCodeSignOut, authstate.ErrSignOut.TextCode)
	})

	t.Run("ErrInitialization", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryOperation, authstate.ErrInitialization.Category)
		assert.Equal(t, authstate.TextCodeInitialization, authstate.ErrInitialization.TextCode)
		assert.Equal(t, "unable to restore session", authstate.ErrInitialization.Message)
	})

	t.Run("clones keep sentinels intact", func(t *testing.T) {
		err := authstate.ErrSignIn.Clone()
		err.Message = "Invalid credentials"
		assert.Equal(t, "sign in failed", authstate.ErrSignIn.Message)
		assert.True(t, authstate.IsSignInError(err))
	})
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", authstate.ErrorMessage(nil))
	assert.Equal(t, "Invalid credentials", authstate.ErrorMessage(errors.New(" Invalid credentials ")))
	assert.Equal(t, "sign in failed", authstate.ErrorMessage(authstate.ErrSignIn))
}
