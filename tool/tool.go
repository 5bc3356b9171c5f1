package tool

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/jonwraymond/toolquery/cache"
)

// Category is the closed set of subjects a query can be about.
type Category string

// Known categories. CategoryGeneral is the catch-all and never matches a
// capability set directly.
const (
	CategoryGeneral     Category = "general"
	CategoryPolitics    Category = "politics"
	CategorySports      Category = "sports"
	CategoryCrypto      Category = "crypto"
	CategoryEconomics   Category = "economics"
	CategoryTechnology  Category = "technology"
	CategoryEnvironment Category = "environment"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryPolitics,
	CategorySports,
	CategoryCrypto,
	CategoryEconomics,
	CategoryTechnology,
	CategoryEnvironment,
	CategoryGeneral,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Descriptor is the static metadata of a registered tool.
type Descriptor struct {
	// Name is the unique tool name, e.g. "get_events".
	Name string

	// Description is shown to tool-calling clients.
	Description string

	// Capabilities are the categories this tool can serve.
	Capabilities []Category

	// Aliases are provider names that, when mentioned verbatim in a query,
	// select this tool explicitly.
	Aliases []string

	// Schema is the parameter contract exposed externally.
	Schema *jsonschema.Schema

	// Strategy selects how cache keys are derived for this tool.
	Strategy cache.Strategy

	// TTL is how long successful payloads stay cached.
	TTL time.Duration

	// Fallback marks the general-purpose tool used when no capability matches.
	Fallback bool

	// Sorts are the provider orderings the tool honors, e.g. "gs" or "mc".
	// Results from a tool that honors the requested sort keep its order.
	Sorts []string

	// Examples are sample queries for documentation and listings.
	Examples []string
}

// Serves reports whether the tool declares c as a capability.
// CategoryGeneral is never served by capability.
func (d Descriptor) Serves(c Category) bool {
	if c == CategoryGeneral {
		return false
	}
	for _, capability := range d.Capabilities {
		if capability == c {
			return true
		}
	}
	return false
}

// Orders reports whether the tool honors the sort key s.
func (d Descriptor) Orders(s string) bool {
	return s != "" && slices.Contains(d.Sorts, s)
}

// Params are the normalized inputs handed to an adapter.
type Params struct {
	Query      string   `json:"query,omitempty"`
	Category   Category `json:"keyword"`
	Terms      []string `json:"terms,omitempty"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
	Sort       string   `json:"sort,omitempty"`
	TimeFilter string   `json:"time_filter,omitempty"`
}

// KeyParts is the identity an adapter contributes to its cache key.
type KeyParts struct {
	// Namespace prefixes the key, usually the provider name. Empty means
	// the tool name.
	Namespace string

	// Entity names the kind of record for content-hash keys, e.g. "event".
	Entity string

	// Identifier names the snapshot for time-bucket keys, e.g. "gs_crypto_10".
	Identifier string

	// Input is hashed into content-hash keys. Only fields that change the
	// upstream response belong here.
	Input map[string]any
}

// Adapter fetches raw results from one external provider.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Fetch must honor cancellation and deadlines.
// - Errors: Fetch returns *Error so the executor can classify retries.
type Adapter interface {
	Descriptor() Descriptor
	KeyParts(p Params) KeyParts
	Fetch(ctx context.Context, p Params) (json.RawMessage, error)
}
