package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Strategy selects how a tool's cache keys are derived.
type Strategy int

const (
	// StrategyContentHash keys on a hash of the request parameters, so a
	// parameter change yields a new key.
	StrategyContentHash Strategy = iota

	// StrategyTimeBucket keys on a query identifier and the current UTC hour,
	// so keys roll over when the clock crosses an hour boundary.
	StrategyTimeBucket
)

func (s Strategy) String() string {
	switch s {
	case StrategyContentHash:
		return "content_hash"
	case StrategyTimeBucket:
		return "time_bucket"
	default:
		return "unknown"
	}
}

// HourBucketLayout formats the UTC hour of a time-bucket key.
const HourBucketLayout = "2006-01-02T15"

// HourBucket truncates t to its UTC hour.
func HourBucket(t time.Time) string {
	return t.UTC().Format(HourBucketLayout)
}

// ContentKey builds a content-hash key.
// Format: <tool>::<entity>:<category>::<hash>
func ContentKey(tool, entity, category string, input any) (string, error) {
	hash, err := QueryHash(input)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s::%s:%s::%s", tool, entity, category, hash), nil
}

// BucketKey builds a time-bucket key.
// Format: <tool>::<identifier>::<YYYY-MM-DDTHH>
func BucketKey(tool, identifier string, at time.Time) string {
	return fmt.Sprintf("%s::%s::%s", tool, identifier, HourBucket(at))
}

// QueryHash returns the first 16 hex characters of SHA-256 over the
// canonical JSON form of input. Map key order never affects the result.
func QueryHash(input any) (string, error) {
	canonical, err := canonicalize(input)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize input: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:8]), nil
}

func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')

		val, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		val, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
