package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultAPIKeyHeader carries API keys when no header is configured.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKey is a registered key. Only the hash of the raw key is stored.
type APIKey struct {
	ID        string
	Hash      string
	Principal string
	Roles     []string

	// ExpiresAt is zero for keys that never expire.
	ExpiresAt time.Time
}

// KeyStore looks up API keys by hash. Lookup returns nil, nil for unknown
// hashes.
type KeyStore interface {
	Lookup(ctx context.Context, hash string) (*APIKey, error)
}

// HashKey returns the hex SHA-256 of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// MemoryKeyStore is a KeyStore held in memory.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

// NewMemoryKeyStore creates a store holding keys.
func NewMemoryKeyStore(keys ...APIKey) *MemoryKeyStore {
	s := &MemoryKeyStore{keys: make(map[string]APIKey, len(keys))}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add stores k, replacing any key with the same hash.
func (s *MemoryKeyStore) Add(k APIKey) {
	s.mu.Lock()
	s.keys[k.Hash] = k
	s.mu.Unlock()
}

// Remove deletes the key with hash.
func (s *MemoryKeyStore) Remove(hash string) {
	s.mu.Lock()
	delete(s.keys, hash)
	s.mu.Unlock()
}

func (s *MemoryKeyStore) Lookup(_ context.Context, hash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[hash]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

// APIKeyAuthenticator validates keys sent in a request header.
type APIKeyAuthenticator struct {
	header string
	store  KeyStore
	now    func() time.Time
}

// NewAPIKeyAuthenticator creates an authenticator reading keys from header
// (DefaultAPIKeyHeader when empty).
func NewAPIKeyAuthenticator(header string, store KeyStore) *APIKeyAuthenticator {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyAuthenticator{header: header, store: store, now: time.Now}
}

func (a *APIKeyAuthenticator) Name() string { return string(MethodAPIKey) }

func (a *APIKeyAuthenticator) Supports(h http.Header) bool {
	return strings.TrimSpace(h.Get(a.header)) != ""
}

func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	raw := strings.TrimSpace(h.Get(a.header))
	if raw == "" {
		return nil, ErrMissingCredentials
	}
	key, err := a.store.Lookup(ctx, HashKey(raw))
	if err != nil {
		return nil, fmt.Errorf("api key lookup: %w", err)
	}
	if key == nil {
		return nil, ErrInvalidCredentials
	}
	if !key.ExpiresAt.IsZero() && !a.now().Before(key.ExpiresAt) {
		return nil, fmt.Errorf("%w: key %s", ErrTokenExpired, key.ID)
	}
	return &Identity{
		Principal: key.Principal,
		Roles:     append([]string(nil), key.Roles...),
		Method:    MethodAPIKey,
		Claims:    map[string]any{"key_id": key.ID},
		ExpiresAt: key.ExpiresAt,
	}, nil
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ KeyStore      = (*MemoryKeyStore)(nil)
)
