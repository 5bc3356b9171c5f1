package auth

import (
	"net/http"
	"slices"
)

// ErrorFunc writes an authentication or authorization failure.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, status int, err error)

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// Authenticator checks credentials. A nil Authenticator admits every
	// request as Anonymous.
	Authenticator Authenticator

	// AllowAnonymous admits requests that carry no credentials. Requests
	// with bad credentials are still rejected.
	AllowAnonymous bool

	// PublicPaths skip authentication entirely.
	PublicPaths []string

	// OnError writes rejections. Default: DefaultErrorFunc.
	OnError ErrorFunc
}

// DefaultErrorFunc writes the status text and sets WWW-Authenticate on 401.
func DefaultErrorFunc(w http.ResponseWriter, _ *http.Request, status int, _ error) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="toolquery"`)
	}
	http.Error(w, http.StatusText(status), status)
}

// Middleware authenticates each request and attaches the Identity to its
// context. Credential errors answer 401, other failures 500.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	onError := cfg.OnError
	if onError == nil {
		onError = DefaultErrorFunc
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Authenticator == nil || slices.Contains(cfg.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Anonymous())))
				return
			}
			if !cfg.Authenticator.Supports(r.Header) {
				if cfg.AllowAnonymous {
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Anonymous())))
					return
				}
				onError(w, r, http.StatusUnauthorized, ErrMissingCredentials)
				return
			}

			id, err := cfg.Authenticator.Authenticate(r.Context(), r.Header)
			if err != nil {
				status := http.StatusInternalServerError
				if IsCredentialError(err) {
					status = http.StatusUnauthorized
				}
				onError(w, r, status, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole admits only callers whose identity holds role. Callers
// without one answer 403.
func RequireRole(role string, onError ErrorFunc) func(http.Handler) http.Handler {
	if onError == nil {
		onError = DefaultErrorFunc
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IdentityFromContext(r.Context()).HasRole(role) {
				onError(w, r, http.StatusForbidden, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
