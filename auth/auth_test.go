package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

var testSecret = []byte("test-secret")

func header(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestAPIKeyAuthenticator(t *testing.T) {
	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	store := NewMemoryKeyStore(
		APIKey{ID: "k1", Hash: HashKey("good-key"), Principal: "ops", Roles: []string{"admin"}},
		APIKey{ID: "k2", Hash: HashKey("old-key"), Principal: "old", ExpiresAt: now.Add(-time.Minute)},
	)
	a := NewAPIKeyAuthenticator("", store)
	a.now = func() time.Time { return now }

	tests := []struct {
		name    string
		headers http.Header
		wantErr error
		want    string
	}{
		{"valid key", header("X-API-Key", "good-key"), nil, "ops"},
		{"surrounding space", header("X-API-Key", "  good-key "), nil, "ops"},
		{"unknown key", header("X-API-Key", "nope"), ErrInvalidCredentials, ""},
		{"expired key", header("X-API-Key", "old-key"), ErrTokenExpired, ""},
		{"missing", header(), ErrMissingCredentials, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.Authenticate(context.Background(), tt.headers)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if id.Principal != tt.want || id.Method != MethodAPIKey || !id.HasRole("admin") {
				t.Errorf("identity = %+v", id)
			}
			if id.Claims["key_id"] != "k1" {
				t.Errorf("key_id = %v", id.Claims["key_id"])
			}
		})
	}
}

func TestAPIKeyAuthenticator_CustomHeader(t *testing.T) {
	a := NewAPIKeyAuthenticator("X-Query-Key", NewMemoryKeyStore(APIKey{Hash: HashKey("k")}))
	if a.Supports(header("X-API-Key", "k")) {
		t.Error("Supports() = true for the default header")
	}
	if !a.Supports(header("X-Query-Key", "k")) {
		t.Error("Supports() = false for the configured header")
	}
}

func TestMemoryKeyStore_Remove(t *testing.T) {
	s := NewMemoryKeyStore(APIKey{ID: "k", Hash: HashKey("raw")})
	s.Remove(HashKey("raw"))
	k, err := s.Lookup(context.Background(), HashKey("raw"))
	if err != nil || k != nil {
		t.Errorf("Lookup() after Remove = %v, %v", k, err)
	}
}

func TestNewJWTAuthenticator_RequiresSecret(t *testing.T) {
	if _, err := NewJWTAuthenticator(JWTConfig{}); !errors.Is(err, ErrNoSecret) {
		t.Errorf("error = %v, want ErrNoSecret", err)
	}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a, _ := NewJWTAuthenticator(JWTConfig{Secret: testSecret})
	tests := []struct {
		name    string
		headers http.Header
		want    bool
	}{
		{"none", header(), false},
		{"bearer", header("Authorization", "Bearer abc"), true},
		{"lower case scheme", header("Authorization", "bearer abc"), true},
		{"basic", header("Authorization", "Basic abc"), false},
		{"empty token", header("Authorization", "Bearer "), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Supports(tt.headers); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	a, err := NewJWTAuthenticator(JWTConfig{Secret: testSecret, Issuer: "toolquery", Audience: "api"})
	if err != nil {
		t.Fatal(err)
	}
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	valid := jwt.MapClaims{"sub": "alice", "iss": "toolquery", "aud": "api", "exp": exp.Unix(), "roles": []string{"admin", "reader"}}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", signToken(t, testSecret, valid), nil},
		{"expired", signToken(t, testSecret, jwt.MapClaims{"sub": "alice", "iss": "toolquery", "aud": "api", "exp": time.Now().Add(-time.Hour).Unix()}), ErrTokenExpired},
		{"wrong issuer", signToken(t, testSecret, jwt.MapClaims{"sub": "alice", "iss": "other", "aud": "api"}), ErrInvalidCredentials},
		{"wrong audience", signToken(t, testSecret, jwt.MapClaims{"sub": "alice", "iss": "toolquery", "aud": "web"}), ErrInvalidCredentials},
		{"wrong secret", signToken(t, []byte("other"), valid), ErrInvalidCredentials},
		{"no subject", signToken(t, testSecret, jwt.MapClaims{"iss": "toolquery", "aud": "api"}), ErrInvalidCredentials},
		{"garbage", "not.a.jwt", ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.Authenticate(context.Background(), header("Authorization", "Bearer "+tt.token))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if id.Principal != "alice" || id.Method != MethodJWT {
				t.Errorf("identity = %+v", id)
			}
			if diff := cmp.Diff([]string{"admin", "reader"}, id.Roles); diff != "" {
				t.Errorf("roles (-want +got):\n%s", diff)
			}
			if !id.ExpiresAt.Equal(exp) {
				t.Errorf("ExpiresAt = %v, want %v", id.ExpiresAt, exp)
			}
		})
	}
}

func TestJWTAuthenticator_RejectsNoneAlg(t *testing.T) {
	a, _ := NewJWTAuthenticator(JWTConfig{Secret: testSecret})
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "eve"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Authenticate(context.Background(), header("Authorization", "Bearer "+tok)); !IsCredentialError(err) {
		t.Errorf("error = %v, want a credential error", err)
	}
}

func TestRolesFrom(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{"admin reader", []string{"admin", "reader"}},
		{[]any{"admin", 3, ""}, []string{"admin"}},
		{nil, nil},
		{42, nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, rolesFrom(tt.in)); diff != "" {
			t.Errorf("rolesFrom(%v) (-want +got):\n%s", tt.in, diff)
		}
	}
}

type stubAuth struct {
	name string
	id   *Identity
	err  error
}

func (s stubAuth) Name() string                { return s.name }
func (s stubAuth) Supports(h http.Header) bool { return h.Get("X-"+s.name) != "" }
func (s stubAuth) Authenticate(context.Context, http.Header) (*Identity, error) {
	return s.id, s.err
}

func TestChain(t *testing.T) {
	boom := errors.New("store down")
	tests := []struct {
		name      string
		auths     []Authenticator
		headers   http.Header
		want      string
		wantErr   error
		supported bool
	}{
		{
			name:      "first success wins",
			auths:     []Authenticator{stubAuth{name: "a", id: &Identity{Principal: "a"}}, stubAuth{name: "b", id: &Identity{Principal: "b"}}},
			headers:   header("X-a", "1", "X-b", "1"),
			want:      "a",
			supported: true,
		},
		{
			name:      "falls through rejection",
			auths:     []Authenticator{stubAuth{name: "a", err: ErrInvalidCredentials}, stubAuth{name: "b", id: &Identity{Principal: "b"}}},
			headers:   header("X-a", "1", "X-b", "1"),
			want:      "b",
			supported: true,
		},
		{
			name:      "internal error stops",
			auths:     []Authenticator{stubAuth{name: "a", err: boom}, stubAuth{name: "b", id: &Identity{Principal: "b"}}},
			headers:   header("X-a", "1", "X-b", "1"),
			wantErr:   boom,
			supported: true,
		},
		{
			name:    "nothing supported",
			auths:   []Authenticator{stubAuth{name: "a"}},
			headers: header(),
			wantErr: ErrMissingCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Chain(tt.auths...)
			if got := c.Supports(tt.headers); got != tt.supported {
				t.Errorf("Supports() = %v, want %v", got, tt.supported)
			}
			id, err := c.Authenticate(context.Background(), tt.headers)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && id.Principal != tt.want {
				t.Errorf("Principal = %q, want %q", id.Principal, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	store := NewMemoryKeyStore(APIKey{ID: "k", Hash: HashKey("good"), Principal: "ops"})
	failing := stubAuth{name: "Broken", err: errors.New("store down")}

	tests := []struct {
		name       string
		cfg        MiddlewareConfig
		path       string
		headers    http.Header
		wantStatus int
		wantUser   string
	}{
		{"valid key", MiddlewareConfig{Authenticator: NewAPIKeyAuthenticator("", store)}, "/query", header("X-API-Key", "good"), 200, "ops"},
		{"bad key", MiddlewareConfig{Authenticator: NewAPIKeyAuthenticator("", store), AllowAnonymous: true}, "/query", header("X-API-Key", "bad"), 401, ""},
		{"missing key", MiddlewareConfig{Authenticator: NewAPIKeyAuthenticator("", store)}, "/query", header(), 401, ""},
		{"anonymous allowed", MiddlewareConfig{Authenticator: NewAPIKeyAuthenticator("", store), AllowAnonymous: true}, "/query", header(), 200, "anonymous"},
		{"public path", MiddlewareConfig{Authenticator: NewAPIKeyAuthenticator("", store), PublicPaths: []string{"/healthz"}}, "/healthz", header(), 200, "anonymous"},
		{"no authenticator", MiddlewareConfig{}, "/query", header(), 200, "anonymous"},
		{"internal failure", MiddlewareConfig{Authenticator: failing}, "/query", header("X-Broken", "1"), 500, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			h := Middleware(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = PrincipalFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header = tt.headers
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("principal = %q, want %q", gotUser, tt.wantUser)
			}
			if rec.Code == 401 && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

func TestMiddleware_OnError(t *testing.T) {
	var gotStatus int
	var gotErr error
	h := Middleware(MiddlewareConfig{
		Authenticator: NewAPIKeyAuthenticator("", NewMemoryKeyStore()),
		OnError: func(w http.ResponseWriter, _ *http.Request, status int, err error) {
			gotStatus, gotErr = status, err
			w.WriteHeader(status)
		},
	})(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "x")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotStatus != 401 || !errors.Is(gotErr, ErrInvalidCredentials) {
		t.Errorf("OnError(%d, %v)", gotStatus, gotErr)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name string
		id   *Identity
		want int
	}{
		{"admin", &Identity{Principal: "ops", Roles: []string{"admin"}}, 204},
		{"reader", &Identity{Principal: "bob", Roles: []string{"reader"}}, 403},
		{"anonymous", Anonymous(), 403},
		{"no identity", nil, 403},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole("admin", nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))
			req := httptest.NewRequest(http.MethodDelete, "/cache", nil)
			if tt.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), tt.id))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestIsCredentialError(t *testing.T) {
	if IsCredentialError(errors.New("x")) || IsCredentialError(nil) {
		t.Error("plain errors are not credential errors")
	}
	if !IsCredentialError(errors.Join(errors.New("ctx"), ErrTokenMalformed)) {
		t.Error("wrapped sentinel not detected")
	}
}
