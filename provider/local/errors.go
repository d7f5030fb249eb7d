package local

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidLogin  = "INVALID_LOGIN_CREDENTIALS"
	TextCodeUserNotFound  = "USER_NOT_FOUND"
	TextCodeTokenExpired  = "TOKEN_EXPIRED"
	TextCodeTokenInvalid  = "TOKEN_INVALID"
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	TextCodeConfiguration = "LOCAL_PROVIDER_CONFIG"
)

// ErrInvalidLogin is returned for unknown emails and wrong passwords alike
var ErrInvalidLogin = goerrors.New("Invalid login credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidLogin).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned by Users implementations for missing records
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired is returned when a stored access token is past its exp
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid is returned for tokens that fail signature or claim checks
var ErrTokenInvalid = goerrors.New("token invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingSigningKey is returned by New without a signing key
var ErrMissingSigningKey = goerrors.New("signing key is required", goerrors.CategoryValidation).
	WithTextCode(TextCodeConfiguration).
	WithCode(goerrors.CodeBadRequest)

// IsUserNotFound reports whether err marks a missing user
func IsUserNotFound(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == TextCodeUserNotFound
}
