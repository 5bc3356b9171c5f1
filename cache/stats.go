package cache

import "time"

// Stats is a point-in-time snapshot of Manager counters.
type Stats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
}

// Requests returns the number of lookups served.
func (s Stats) Requests() uint64 {
	return s.Hits + s.Misses
}

// EntryInfo describes a stored entry without exposing its value.
type EntryInfo struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Size      int       `json:"size"`
	Expired   bool      `json:"expired"`
}
