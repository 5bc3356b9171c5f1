// Package auth authenticates HTTP callers of the query server.
//
// Two credential types are supported: static API keys, stored as SHA-256
// hashes, and HMAC-signed JWTs. Authenticators are combined with Chain and
// enforced by Middleware, which attaches the caller's Identity to the
// request context. RequireRole guards individual routes.
package auth
