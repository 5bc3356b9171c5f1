package secret

import "errors"

var (
	ErrMissingEnv          = errors.New("secret: missing environment variables")
	ErrInvalidRegistration = errors.New("secret: invalid provider registration")
	ErrDuplicateProvider   = errors.New("secret: provider already registered")
	ErrUnknownProvider     = errors.New("secret: provider is not registered")
	ErrInvalidRef          = errors.New("secret: invalid reference")
	ErrEmptySecret         = errors.New("secret: provider returned an empty value")
	ErrNotFound            = errors.New("secret: not found")
)
