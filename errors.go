package authkit

import "errors"

// Sentinel errors returned by UserStore implementations and the credential
// helpers built on top of them.
var (
	// ErrUserNotFound is returned when no user matches a lookup key
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when a write would violate a uniqueness
	// constraint (username, email or phone). Stores must return this from
	// the write itself, not rely on an earlier read-time check.
	ErrDuplicateUser = errors.New("username, email or phone already registered")

	// ErrInvalidCredentials is the single error for every login failure.
	// Callers must never distinguish "no such user" from "wrong password".
	ErrInvalidCredentials = errors.New("username/email or password incorrect")

	// ErrInactiveUser is returned when a password login hits an account
	// that has not confirmed its email yet
	ErrInactiveUser = errors.New("account is not activated")
)

// Error codes attached to AuthError for field-level validation failures
const (
	ErrCodeMissingField     = "missing_field"
	ErrCodeInvalidEmail     = "invalid_email"
	ErrCodeWeakPassword     = "weak_password"
	ErrCodePasswordMismatch = "password_mismatch"
	ErrCodeUsernameTaken    = "username_taken"
	ErrCodeEmailTaken       = "email_taken"
	ErrCodePhoneTaken       = "phone_taken"
	ErrCodeDuplicateUser    = "duplicate_user"
	ErrCodeInvalidCreds     = "invalid_credentials"
	ErrCodeInvalidLink      = "invalid_link"
)

// AuthError is a user-correctable error that can be rendered back inline
// against the form field that caused it.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}
