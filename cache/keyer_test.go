package cache

import (
	"strings"
	"testing"
	"time"
)

func TestQueryHash_OrderIndependent(t *testing.T) {
	a := map[string]any{"keyword": "politics", "terms": []any{"trump", "election"}, "active": true}
	b := map[string]any{"active": true, "terms": []any{"trump", "election"}, "keyword": "politics"}

	ha, err := QueryHash(a)
	if err != nil {
		t.Fatalf("QueryHash() error = %v", err)
	}
	hb, _ := QueryHash(b)
	if ha != hb {
		t.Errorf("hash differs by key order: %s vs %s", ha, hb)
	}
	if len(ha) != 16 {
		t.Errorf("len(hash) = %d, want 16", len(ha))
	}
}

func TestQueryHash_Nested(t *testing.T) {
	a := map[string]any{"outer": map[string]any{"z": 1, "a": 2}}
	b := map[string]any{"outer": map[string]any{"a": 2, "z": 1}}
	ha, _ := QueryHash(a)
	hb, _ := QueryHash(b)
	if ha != hb {
		t.Error("nested maps should hash independent of key order")
	}
}

func TestQueryHash_Unmarshalable(t *testing.T) {
	if _, err := QueryHash(map[string]any{"fn": func() {}}); err == nil {
		t.Error("expected error for unmarshalable input")
	}
}

// TestContentKey_ParametersChangeKey verifies differing parameters produce different keys.
func TestContentKey_ParametersChangeKey(t *testing.T) {
	k1, err := ContentKey("get_events", "event", "politics", map[string]any{"terms": []any{"trump"}})
	if err != nil {
		t.Fatalf("ContentKey() error = %v", err)
	}
	k2, _ := ContentKey("get_events", "event", "politics", map[string]any{"terms": []any{"biden"}})
	if k1 == k2 {
		t.Error("different parameters must produce different keys")
	}
	if !strings.HasPrefix(k1, "get_events::event:politics::") {
		t.Errorf("key %q has wrong namespace", k1)
	}
}

func TestContentKey_ToolsNeverCollide(t *testing.T) {
	input := map[string]any{"q": "x"}
	a, _ := ContentKey("tool_a", "event", "crypto", input)
	b, _ := ContentKey("tool_b", "event", "crypto", input)
	if a == b {
		t.Error("identical inputs under different tools must not collide")
	}
}

func TestBucketKey(t *testing.T) {
	early := time.Date(2026, 1, 2, 15, 1, 0, 0, time.UTC)
	late := time.Date(2026, 1, 2, 15, 59, 59, 0, time.UTC)
	next := time.Date(2026, 1, 2, 16, 0, 0, 0, time.UTC)

	k1 := BucketKey("get_crypto_sentiment", "gs_crypto_10", early)
	k2 := BucketKey("get_crypto_sentiment", "gs_crypto_10", late)
	k3 := BucketKey("get_crypto_sentiment", "gs_crypto_10", next)

	if k1 != "get_crypto_sentiment::gs_crypto_10::2026-01-02T15" {
		t.Errorf("BucketKey() = %q", k1)
	}
	if k1 != k2 {
		t.Error("same UTC hour must share a key")
	}
	if k1 == k3 {
		t.Error("crossing an hour boundary must change the key")
	}
}

func TestHourBucket_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2026, 1, 2, 3, 30, 0, 0, loc)
	if got := HourBucket(local); got != "2026-01-01T22" {
		t.Errorf("HourBucket() = %q, want 2026-01-01T22", got)
	}
}

func TestStrategy_String(t *testing.T) {
	if StrategyContentHash.String() != "content_hash" || StrategyTimeBucket.String() != "time_bucket" {
		t.Error("unexpected strategy names")
	}
	if Strategy(42).String() != "unknown" {
		t.Error("unknown strategy should stringify as unknown")
	}
}

func TestPolicy_EffectiveTTL(t *testing.T) {
	p := Policy{DefaultTTL: time.Minute, MaxTTL: time.Hour}
	tests := []struct {
		requested time.Duration
		want      time.Duration
	}{
		{0, time.Minute},
		{-time.Second, time.Minute},
		{15 * time.Minute, 15 * time.Minute},
		{2 * time.Hour, time.Hour},
	}
	for _, tt := range tests {
		if got := p.EffectiveTTL(tt.requested); got != tt.want {
			t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.requested, got, tt.want)
		}
	}
}
