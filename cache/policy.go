package cache

import "time"

// Policy bounds the TTLs a Manager accepts.
type Policy struct {
	// DefaultTTL applies when Set is called with a non-positive TTL.
	// If zero, such calls are no-ops.
	DefaultTTL time.Duration

	// MaxTTL clamps requested TTLs. Zero means no maximum.
	MaxTTL time.Duration
}

// DefaultPolicy returns a 5 minute default TTL capped at 1 hour.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     time.Hour,
	}
}

// EffectiveTTL returns the TTL to store an entry with, applying the default
// and the cap.
func (p Policy) EffectiveTTL(requested time.Duration) time.Duration {
	ttl := requested
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
