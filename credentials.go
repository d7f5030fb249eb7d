package authstate

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength matches the login form rule
const MinPasswordLength = 6

// Credentials is the email/password pair submitted by the login form
type Credentials struct {
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	RememberMe bool   `json:"remember_me" form:"remember_me"`
}

// Normalize trims the email. Passwords are taken verbatim.
func (c Credentials) Normalize() Credentials {
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// Validate checks the same rules the login form enforces
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email,
			validation.Required.Error("email is required"),
			is.Email.Error("must be a valid email address"),
		),
		validation.Field(&c.Password,
			validation.Required.Error("password is required"),
			validation.RuneLength(MinPasswordLength, 0).Error("password must be at least 6 characters"),
		),
	)
}

// GetIdentifier returns the email used as login identifier
func (c Credentials) GetIdentifier() string {
	return c.Email
}

// GetPassword returns the password
func (c Credentials) GetPassword() string {
	return c.Password
}

// GetExtendedSession reports whether the user asked to be remembered
func (c Credentials) GetExtendedSession() bool {
	return c.RememberMe
}
