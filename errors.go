package authstate

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInitialization     = "AUTH_INITIALIZATION_FAILED"
	TextCodeSignIn             = "AUTH_SIGN_IN_FAILED"
	TextCodeSignOut            = "AUTH_SIGN_OUT_FAILED"
	TextCodeInvalidCredentials = "SIGN_IN_INVALID_INPUT"
)

// ErrInitialization is reported when the initial session fetch fails.
// It is never returned to a caller, only mirrored into the store error.
var ErrInitialization = goerrors.New("unable to restore session", goerrors.CategoryOperation).
	WithTextCode(TextCodeInitialization).
	WithCode(http.StatusInternalServerError)

// ErrSignIn is returned when the provider rejects a sign in
var ErrSignIn = goerrors.New("sign in failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeSignIn).
	WithCode(goerrors.CodeUnauthorized)

// ErrSignOut is returned when the provider fails to terminate the session
var ErrSignOut = goerrors.New("sign out failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeSignOut).
	WithCode(http.StatusInternalServerError)

// ErrInvalidCredentials is returned when credentials fail local validation
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

// ErrStoreClosed is returned by commands issued after Close
var ErrStoreClosed = errors.New("auth state store closed")

// wrapStoreError clones base so the sentinel is never mutated. The clone
// carries the human message of the source error so callers and passive
// observers see the same text.
func wrapStoreError(base *goerrors.Error, operation string, source error) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = goerrors.New(base.Message, base.Category).
			WithTextCode(base.TextCode).
			WithCode(base.Code)
	}

	if msg := ErrorMessage(source); msg != "" {
		clone.Message = msg
	}
	clone.Source = source

	return clone.WithMetadata(map[string]any{
		"operation": operation,
	})
}

// ErrorMessage extracts the human readable message from err. Rich errors
// contribute their Message, everything else its Error() text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil && richErr.Message != "" {
		return richErr.Message
	}

	return strings.TrimSpace(err.Error())
}

// IsSignInError reports whether err is a sign in failure, including
// credential validation failures
func IsSignInError(err error) bool {
	return hasTextCode(err, TextCodeSignIn) || hasTextCode(err, TextCodeInvalidCredentials)
}

// IsSignOutError reports whether err is a sign out failure
func IsSignOutError(err error) bool {
	return hasTextCode(err, TextCodeSignOut)
}

// IsInitializationError reports whether err is an initialization failure
func IsInitializationError(err error) bool {
	return hasTextCode(err, TextCodeInitialization)
}

// IsValidationError reports whether err came from credential validation
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == code
}
