package auth

import "errors"

// Credential errors. Middleware answers these with 401; any other
// authenticator error is a 500.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
)

// ErrForbidden is returned when an authenticated caller lacks a role.
var ErrForbidden = errors.New("auth: access denied")

// ErrNoSecret is returned when a JWT authenticator has no signing secret.
var ErrNoSecret = errors.New("auth: jwt secret is empty")

// IsCredentialError reports whether err is a rejection of the caller's
// credentials rather than an internal failure.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed)
}
