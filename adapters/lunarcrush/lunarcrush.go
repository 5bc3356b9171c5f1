// Package lunarcrush serves crypto social sentiment from LunarCrush as the
// get_crypto_sentiment tool.
package lunarcrush

import (
	"context"
	"encoding/json"
	"errors"
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
	Name           = "get_crypto_sentiment"
	Namespace      = "lunarcrush"
	DefaultBaseURL = "https://lunarcrush.com/api4"
	DefaultTTL     = time.Hour
	DefaultSort    = "mc"
)

// Sorts are the sort keys the coins list accepts.
var Sorts = []string{"mc", "v", "p", "pc", "gs", "ar"}

// Config configures the adapter.
type Config struct {
	// BaseURL of the API. Default: DefaultBaseURL.
	BaseURL string

	// APIKey is sent as a bearer token. Empty serves the demo dataset.
	APIKey string

	// TTL of cached responses. Default: DefaultTTL.
	TTL time.Duration

	// HTTPClient performs requests. Nil uses adapters.NewClient's default.
	HTTPClient *http.Client
}

// Adapter implements tool.Adapter for LunarCrush coins.
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
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Adapter{cfg: cfg, client: adapters.NewClient(Name, cfg.HTTPClient)}
}

// Demo reports whether the adapter serves the built-in dataset.
func (a *Adapter) Demo() bool {
	return a.cfg.APIKey == ""
}

// Descriptor implements tool.Adapter.
func (a *Adapter) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:         Name,
		Description:  "Fetch crypto coins with price, market cap, galaxy score and social sentiment from LunarCrush.",
		Capabilities: []tool.Category{tool.CategoryCrypto},
		Aliases:      []string{"lunarcrush"},
		Schema:       tool.QuerySchema(tool.CategoryCrypto),
		Strategy:     cache.StrategyTimeBucket,
		TTL:          a.cfg.TTL,
		Sorts:        Sorts,
		Examples: []string{
			"Show top 5 trending crypto coins",
			"Bitcoin sentiment by market cap",
			"Top 10 coins by volume",
		},
	}
}

// KeyParts implements tool.Adapter. Snapshots are identified by sort,
// category and limit within the hour.
func (a *Adapter) KeyParts(p tool.Params) tool.KeyParts {
	return tool.KeyParts{
		Namespace:  Namespace,
		Identifier: fmt.Sprintf("%s_%s_%d", sortOf(p), p.Category, p.Limit),
	}
}

func sortOf(p tool.Params) string {
	for _, s := range Sorts {
		if p.Sort == s {
			return s
		}
	}
	return DefaultSort
}

// requested is how many coins to ask for: the page plus the offset, since
// paging happens after the fetch.
func requested(p tool.Params) int {
	n := p.Limit + p.Offset
	if n < tool.MinLimit {
		n = tool.DefaultLimit
	}
	return n
}

type coin struct {
	ID        adapters.String `json:"id"`
	Symbol    string          `json:"s"`
	Name      string          `json:"n"`
	Price     adapters.Number `json:"p"`
	MarketCap adapters.Number `json:"mc"`
	Change24h adapters.Number `json:"pc"`
	Galaxy    adapters.Number `json:"gs"`
	AltRank   adapters.Number `json:"ar"`
	Volume    adapters.Number `json:"v"`
	Sentiment adapters.String `json:"sentiment"`
}

type item struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	MarketCap        float64 `json:"marketCap"`
	PercentChange24h float64 `json:"percentChange24h"`
	GalaxyScore      float64 `json:"galaxyScore"`
	AltRank          float64 `json:"altRank"`
	Volume           float64 `json:"volume"`
	Sentiment        string  `json:"sentiment,omitempty"`
	Category         string  `json:"category"`
	Source           string  `json:"source"`
}

// Fetch implements tool.Adapter.
func (a *Adapter) Fetch(ctx context.Context, p tool.Params) (json.RawMessage, error) {
	sort, n := sortOf(p), requested(p)
	if a.Demo() {
		return json.Marshal(demoItems(sort, n))
	}

	q := url.Values{}
	q.Set("sort", sort)
	q.Set("limit", strconv.Itoa(n))
	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	var resp struct {
		Data *[]coin `json:"data"`
	}
	if err := a.client.GetJSON(ctx, a.cfg.BaseURL+"/public/coins/list/v1", q, header, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, tool.NewError(Name, tool.KindMalformed, errors.New("response has no data field"))
	}

	coins := *resp.Data
	if len(coins) > n {
		coins = coins[:n]
	}
	out := make([]item, 0, len(coins))
	for _, c := range coins {
		out = append(out, toItem(c))
	}
	return json.Marshal(out)
}

func toItem(c coin) item {
	id := string(c.ID)
	if id == "" {
		id = strings.ToLower(c.Symbol)
	}
	title := c.Name
	if title == "" {
		title = c.Symbol
	}
	return item{
		ID:               id,
		Title:            title,
		Symbol:           c.Symbol,
		Price:            float64(c.Price),
		MarketCap:        float64(c.MarketCap),
		PercentChange24h: float64(c.Change24h),
		GalaxyScore:      float64(c.Galaxy),
		AltRank:          float64(c.AltRank),
		Volume:           float64(c.Volume),
		Sentiment:        string(c.Sentiment),
		Category:         string(tool.CategoryCrypto),
		Source:           Namespace,
	}
}
