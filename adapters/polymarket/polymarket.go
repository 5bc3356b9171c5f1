// Package polymarket serves prediction market events from the Polymarket
// gamma API as the get_events tool.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/toolquery/adapters"
	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/tool"
)

// Tool identity and defaults.
const (
	Name            = "get_events"
	Namespace       = "polymarket"
	DefaultBaseURL  = "https://gamma-api.polymarket.com"
	EventURLPrefix  = "https://polymarket.com/event/"
	DefaultTTL      = 15 * time.Minute
	DefaultPageSize = 100
)

// Capabilities are the categories get_events serves.
var Capabilities = []tool.Category{
	tool.CategoryPolitics,
	tool.CategorySports,
	tool.CategoryCrypto,
	tool.CategoryEconomics,
	tool.CategoryTechnology,
	tool.CategoryEnvironment,
}

// Expansions lists the words that identify an event as belonging to a
// category, besides the category name itself.
var Expansions = map[tool.Category][]string{
	tool.CategoryPolitics:    {"election", "trump", "biden", "harris", "congress", "senate", "president"},
	tool.CategorySports:      {"nfl", "nba", "football", "basketball", "soccer", "championship", "super bowl"},
	tool.CategoryCrypto:      {"bitcoin", "ethereum", "btc", "eth", "solana", "crypto"},
	tool.CategoryEconomics:   {"fed", "inflation", "interest rate", "recession", "gdp", "cpi"},
	tool.CategoryTechnology:  {"ai", "tech", "apple", "google", "openai", "nvidia"},
	tool.CategoryEnvironment: {"climate", "temperature", "hurricane", "emissions", "weather"},
}

// Config configures the adapter.
type Config struct {
	// BaseURL of the gamma API. Default: DefaultBaseURL.
	BaseURL string

	// PageSize is how many active events are requested per fetch.
	// Default: DefaultPageSize.
	PageSize int

	// TTL of cached responses. Default: DefaultTTL.
	TTL time.Duration

	// HTTPClient performs requests. Nil uses adapters.NewClient's default.
	HTTPClient *http.Client
}

// Adapter implements tool.Adapter for Polymarket events.
type Adapter struct {
	cfg    Config
	client *adapters.Client
}

// New creates an Adapter.
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Adapter{cfg: cfg, client: adapters.NewClient(Name, cfg.HTTPClient)}
}

// Descriptor implements tool.Adapter.
func (a *Adapter) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:         Name,
		Description:  "Fetch active prediction market events from Polymarket, filtered by topic.",
		Capabilities: Capabilities,
		Aliases:      []string{"polymarket"},
		Schema:       tool.QuerySchema(Capabilities...),
		Strategy:     cache.StrategyContentHash,
		TTL:          a.cfg.TTL,
		Fallback:     true,
		Examples: []string{
			"Fetch me sports events",
			"Show 3 Trump election markets",
			"Get crypto events today",
		},
	}
}

// KeyParts implements tool.Adapter. The upstream page is fixed, so limit
// and offset do not change the response and stay out of the key.
func (a *Adapter) KeyParts(p tool.Params) tool.KeyParts {
	return tool.KeyParts{
		Namespace: Namespace,
		Entity:    "event",
		Input:     map[string]any{"keyword": string(p.Category)},
	}
}

type event struct {
	ID          adapters.String `json:"id"`
	Title       string          `json:"title"`
	Question    string          `json:"question"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	EndDate     string          `json:"endDate"`
	Volume      adapters.Number `json:"volume"`
	Image       string          `json:"image"`
	Tags        []adapters.Tag  `json:"tags"`
	Markets     []market        `json:"markets"`
}

// market is one outcome market of an event. outcomePrices arrives as a
// JSON-encoded string array, e.g. "[\"0.65\", \"0.35\"]".
type market struct {
	LastTradePrice adapters.Number `json:"lastTradePrice"`
	OutcomePrices  adapters.String `json:"outcomePrices"`
}

type item struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
	Volume      float64  `json:"volume"`
	URL         string   `json:"url,omitempty"`
	MarketSlug  string   `json:"marketSlug,omitempty"`
	Image       string   `json:"image,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source"`
}

// Fetch implements tool.Adapter.
func (a *Adapter) Fetch(ctx context.Context, p tool.Params) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(a.cfg.PageSize))
	q.Set("offset", "0")
	q.Set("active", "true")
	q.Set("closed", "false")

	var body json.RawMessage
	if err := a.client.GetJSON(ctx, a.cfg.BaseURL+"/events", q, nil, &body); err != nil {
		return nil, err
	}
	events, err := decodeEvents(body)
	if err != nil {
		return nil, tool.NewError(Name, tool.KindMalformed, err)
	}

	terms := searchTerms(p.Category)
	out := make([]item, 0, len(events))
	for _, ev := range events {
		if len(terms) > 0 && !matches(ev, terms) {
			continue
		}
		out = append(out, toItem(ev))
	}
	return json.Marshal(out)
}

func decodeEvents(body json.RawMessage) ([]event, error) {
	var events []event
	if err := json.Unmarshal(body, &events); err == nil {
		return events, nil
	}
	var wrapped struct {
		Data []event `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return wrapped.Data, nil
}

func searchTerms(c tool.Category) []string {
	if c == tool.CategoryGeneral || c == "" {
		return nil
	}
	return append([]string{string(c)}, Expansions[c]...)
}

func matches(ev event, terms []string) bool {
	parts := []string{ev.Title, ev.Question, ev.Description}
	for _, t := range ev.Tags {
		parts = append(parts, string(t))
	}
	return adapters.MatchesAny(strings.Join(parts, " "), terms)
}

func toItem(ev event) item {
	title := ev.Title
	if title == "" {
		title = ev.Question
	}
	ref := ev.Slug
	if ref == "" {
		ref = string(ev.ID)
	}
	it := item{
		ID:          string(ev.ID),
		Title:       title,
		Description: ev.Description,
		EndDate:     ev.EndDate,
		Volume:      float64(ev.Volume),
		MarketSlug:  ev.Slug,
		Image:       ev.Image,
		Price:       price(ev),
		Source:      Namespace,
	}
	if ref != "" {
		it.URL = EventURLPrefix + ref
	}
	for _, t := range ev.Tags {
		if t != "" {
			it.Tags = append(it.Tags, strings.ToLower(string(t)))
		}
	}
	return it
}

// price is the probability of the first outcome of the event's first
// market: its last trade, else its quoted outcome price.
func price(ev event) *float64 {
	if len(ev.Markets) == 0 {
		return nil
	}
	m := ev.Markets[0]
	if p := float64(m.LastTradePrice); p > 0 {
		return &p
	}
	var quoted []adapters.Number
	if err := json.Unmarshal([]byte(m.OutcomePrices), &quoted); err != nil || len(quoted) == 0 {
		return nil
	}
	p := float64(quoted[0])
	return &p
}
