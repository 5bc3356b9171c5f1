// Package combined serves the combined_reasoning tool: a position
// recommendation built from prediction market events and coin sentiment.
// It calls the two source tools through the executor, so their results are
// cached and coalesced like any direct query.
package combined

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/toolquery/adapters"
	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/executor"
	"github.com/jonwraymond/toolquery/postprocess"
	"github.com/jonwraymond/toolquery/tool"
)

// Tool identity and defaults.
const (
	Name       = "combined_reasoning"
	Namespace  = "reasoning"
	DefaultTTL = 10 * time.Minute

	// EventLimit is how many events, by volume, feed the market signals.
	EventLimit = 5

	// CoinLimit coins are requested by galaxy score; at most MaxCoins of
	// the relevant ones feed the sentiment signals.
	CoinLimit = 10
	CoinSort  = "gs"
	MaxCoins  = 5
)

// ErrMissingSource is returned by New when a source tool or the runner is
// nil.
var ErrMissingSource = errors.New("combined: events, coins and runner are required")

// Runner executes source tools. *executor.Executor implements it.
type Runner interface {
	ExecuteMany(ctx context.Context, calls []executor.Call) []executor.Result
}

// Config configures the adapter.
type Config struct {
	// Events serves prediction market events, usually get_events.
	Events tool.Adapter

	// Coins serves coin sentiment, usually get_crypto_sentiment.
	Coins tool.Adapter

	// Runner executes both sources.
	Runner Runner

	// TTL of cached analyses. Default: DefaultTTL.
	TTL time.Duration
}

// generic words name the kind of data asked for rather than a subject.
var generic = []string{"event", "events", "prediction", "predictions", "market", "markets"}

// Adapter implements tool.Adapter for combined_reasoning.
type Adapter struct {
	cfg Config

	// ignore holds words never used as the analysis subject.
	ignore map[string]bool
}

// New creates the adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.Events == nil || cfg.Coins == nil || cfg.Runner == nil {
		return nil, ErrMissingSource
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	a := &Adapter{cfg: cfg, ignore: map[string]bool{}}
	for _, w := range generic {
		a.ignore[w] = true
	}
	for _, src := range []tool.Adapter{cfg.Events, cfg.Coins, a} {
		for _, alias := range src.Descriptor().Aliases {
			a.ignore[strings.ToLower(alias)] = true
		}
	}
	return a, nil
}

// Descriptor implements tool.Adapter. The tool declares no capabilities:
// it is reached by name, alias or a position-taking phrase, never by
// category alone.
func (a *Adapter) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        Name,
		Description: "Recommend a LONG, SHORT or NEUTRAL position by combining Polymarket odds with LunarCrush coin sentiment.",
		Aliases:     []string{"combined", "reasoning"},
		Schema:      tool.QuerySchema(tool.Categories...),
		Strategy:    cache.StrategyContentHash,
		TTL:         a.cfg.TTL,
		Examples: []string{
			"Should I go long or short on bitcoin?",
			"Is it better to take a position in the crypto market?",
			"Bull or bear case for ethereum",
		},
	}
}

// KeyParts implements tool.Adapter. An analysis depends on the category
// and the focus terms only.
func (a *Adapter) KeyParts(p tool.Params) tool.KeyParts {
	return tool.KeyParts{
		Namespace: Namespace,
		Entity:    "analysis",
		Input:     map[string]any{"keyword": string(p.Category), "focus": a.focus(p.Terms)},
	}
}

// Fetch implements tool.Adapter. Sources are fetched without retries; the
// executor retries the whole analysis, and a source that already succeeded
// is then served from the cache. Fetch fails only when both sources fail.
func (a *Adapter) Fetch(ctx context.Context, p tool.Params) (json.RawMessage, error) {
	events, coins := a.cfg.Events.Descriptor().Name, a.cfg.Coins.Descriptor().Name
	results := a.cfg.Runner.ExecuteMany(ctx, []executor.Call{
		{
			Adapter: a.cfg.Events,
			Params:  tool.Params{Query: p.Query, Category: p.Category, Terms: p.Terms, Limit: EventLimit},
			Options: []executor.Option{executor.WithMaxRetries(0)},
		},
		{
			Adapter: a.cfg.Coins,
			Params:  tool.Params{Category: tool.CategoryCrypto, Limit: CoinLimit, Sort: CoinSort},
			Options: []executor.Option{executor.WithMaxRetries(0)},
		},
	})
	evRes, coinRes := results[0], results[1]
	if !evRes.Success && !coinRes.Success {
		kind := evRes.Kind
		if kind.Retriable() {
			kind = tool.KindUnavailable
		}
		return nil, tool.NewError(Name, kind, errors.Join(evRes.Err, coinRes.Err))
	}

	terms := a.focus(p.Terms)
	var in Inputs
	if evRes.Success {
		in.Events = topEvents(decode[Event](evRes.Payload), EventLimit)
	}
	if coinRes.Success {
		in.Coins = relevantCoins(decode[Coin](coinRes.Payload), terms, MaxCoins)
	}

	analysis := Analyze(keyword(p, terms), in)
	analysis.Sources = map[string]string{events: status(evRes), coins: status(coinRes)}

	return json.Marshal([]result{{
		ID:          Namespace + "-" + analysis.Keyword,
		Title:       "Position analysis: " + strings.ToUpper(analysis.Keyword),
		Description: summary(analysis),
		Source:      Namespace,
		Analysis:    analysis,
	}})
}

type result struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Source      string                `json:"source"`
	Analysis    *postprocess.Analysis `json:"analysis"`
}

// Event is the part of a get_events item the analysis reads.
type Event struct {
	Title  string          `json:"title"`
	Volume adapters.Number `json:"volume"`
	Price  *float64        `json:"price"`
}

// Coin is the part of a get_crypto_sentiment item the analysis reads.
type Coin struct {
	Title            string          `json:"title"`
	Symbol           string          `json:"symbol"`
	GalaxyScore      *float64        `json:"galaxyScore"`
	PercentChange24h adapters.Number `json:"percentChange24h"`
}

// decode reads a source payload. Undecodable payloads contribute nothing.
func decode[T any](raw json.RawMessage) []T {
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func topEvents(events []Event, n int) []Event {
	slices.SortStableFunc(events, func(a, b Event) int {
		return cmp.Compare(b.Volume, a.Volume)
	})
	return events[:min(n, len(events))]
}

// relevantCoins keeps the coins whose name or symbol mentions a focus term.
// Without focus terms every coin is relevant.
func relevantCoins(coins []Coin, terms []string, n int) []Coin {
	if len(terms) > 0 {
		coins = slices.DeleteFunc(coins, func(c Coin) bool {
			return !adapters.MatchesAny(c.Title+" "+c.Symbol, terms)
		})
	}
	return coins[:min(n, len(coins))]
}

// focus keeps the terms naming a subject. Category names, tool aliases and
// generic words are dropped.
func (a *Adapter) focus(terms []string) []string {
	out := []string{}
	for _, t := range terms {
		t = strings.ToLower(t)
		if !tool.Category(t).Valid() && !a.ignore[t] && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func keyword(p tool.Params, terms []string) string {
	if len(terms) > 0 {
		return terms[0]
	}
	if p.Category == "" {
		return string(tool.CategoryGeneral)
	}
	return string(p.Category)
}

func status(r executor.Result) string {
	if r.Success {
		return "ok"
	}
	return r.Kind.String()
}
