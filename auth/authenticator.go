package auth

import (
	"context"
	"net/http"
	"strings"
)

// Authenticator validates the credentials carried by request headers.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: rejected credentials wrap one of the credential sentinels
//     (see IsCredentialError); anything else is an internal failure.
type Authenticator interface {
	// Name identifies the authenticator in logs.
	Name() string

	// Supports reports whether h carries credentials of this kind.
	Supports(h http.Header) bool

	// Authenticate returns the identity behind the credentials in h.
	Authenticate(ctx context.Context, h http.Header) (*Identity, error)
}

type chain []Authenticator

// Chain tries each authenticator that supports the request, in order, and
// returns the first identity. When all of them reject the request the
// last rejection is returned.
func Chain(auths ...Authenticator) Authenticator {
	return chain(auths)
}

func (c chain) Name() string { return "chain" }

func (c chain) Supports(h http.Header) bool {
	for _, a := range c {
		if a.Supports(h) {
			return true
		}
	}
	return false
}

func (c chain) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	err := ErrMissingCredentials
	for _, a := range c {
		if !a.Supports(h) {
			continue
		}
		id, aerr := a.Authenticate(ctx, h)
		if aerr == nil {
			return id, nil
		}
		if !IsCredentialError(aerr) {
			return nil, aerr
		}
		err = aerr
	}
	return nil, err
}

// bearer returns the token of an "Authorization: Bearer" header.
func bearer(h http.Header) (string, bool) {
	const prefix = "Bearer "
	v := h.Get("Authorization")
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	return v[len(prefix):], true
}
