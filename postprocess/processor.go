package postprocess

import (
	"context"
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/parser"
	"github.com/jonwraymond/toolquery/tool"
)

// Context is what the processor needs to know about the query.
type Context struct {
	Tool       string
	Category   tool.Category
	Terms      []string
	Limit      int
	Offset     int
	TimeFilter parser.TimeFilter

	// Sort is the ordering the provider applied. When set, the provider's
	// order is kept instead of sorting by volume.
	Sort parser.Sort
}

// Config configures a Processor.
type Config struct {
	// Sources maps tool names to the source recorded on their items.
	// Default: DefaultSources.
	Sources map[string]string

	// Clock overrides time.Now for ProcessedAt and time filters.
	Clock func() time.Time

	// Logger receives debug lines for dropped items.
	Logger observe.Logger
}

// DefaultSources names the provider behind each built-in tool.
var DefaultSources = map[string]string{
	"get_events":           "polymarket",
	"get_crypto_sentiment": "lunarcrush",
	"combined_reasoning":   "reasoning",
}

// titleTags derives extra tags from words found in an item's title.
var titleTags = []struct {
	tag   string
	words []string
}{
	{"politics", []string{"election", "vote", "president", "congress"}},
	{"election", []string{"trump", "biden", "harris"}},
	{"sports", []string{"win", "championship", "game", "match"}},
	{"crypto", []string{"bitcoin", "ethereum", "crypto", "price"}},
}

// Processor turns raw adapter payloads into envelopes. It holds no mutable
// state and is safe for concurrent use.
type Processor struct {
	sources map[string]string
	now     func() time.Time
	logger  observe.Logger
}

// New creates a Processor.
func New(cfg Config) *Processor {
	if cfg.Sources == nil {
		cfg.Sources = DefaultSources
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Processor{sources: cfg.Sources, now: cfg.Clock, logger: cfg.Logger}
}

// Process validates, filters, enriches, sorts and pages raw, then wraps the
// result in an envelope. The QueryInfo of the envelope carries the keyword,
// paging and counts; callers add routing and execution details.
func (p *Processor) Process(raw json.RawMessage, qc Context) Response {
	now := p.now().UTC()
	info := QueryInfo{
		Keyword:    string(qc.Category),
		Limit:      qc.Limit,
		Offset:     qc.Offset,
		Terms:      qc.Terms,
		Sort:       string(qc.Sort),
		TimeFilter: string(qc.TimeFilter),
		Tool:       qc.Tool,
	}

	rawItems, ok := decodeItems(raw)
	if !ok {
		return Failure(CodeInvalidResponse, "payload is not a list of results", info)
	}

	items := make([]Item, 0, len(rawItems))
	for i, r := range rawItems {
		it, ok := validate(r)
		if !ok {
			info.Dropped++
			p.logger.Debug(context.Background(), "dropped invalid result",
				observe.Field{Key: "tool", Value: qc.Tool},
				observe.Field{Key: "index", Value: i},
			)
			continue
		}
		items = append(items, it)
	}
	if len(rawItems) > 0 && len(items) == 0 {
		return Failure(CodeInvalidResponse, "no result passed validation", info)
	}

	items = p.filter(items, qc, now)
	p.enrich(items, qc, now)
	if qc.Sort == parser.SortNone {
		sortItems(items)
	}

	info.Total = len(items)
	items = page(items, qc.Offset, qc.Limit)

	return Response{
		Success:   true,
		Results:   items,
		Count:     len(items),
		QueryInfo: info,
	}
}

func (p *Processor) filter(items []Item, qc Context, now time.Time) []Item {
	start, end, windowed := parser.TimeRange(qc.TimeFilter, now)
	category := string(qc.Category)

	return slices.DeleteFunc(items, func(it Item) bool {
		if qc.Category != tool.CategoryGeneral && category != "" && it.Category != "" && it.Category != category {
			return true
		}
		if windowed && !it.end.IsZero() && (it.end.Before(start) || !it.end.Before(end)) {
			return true
		}
		return false
	})
}

func (p *Processor) enrich(items []Item, qc Context, now time.Time) {
	processedAt := now.Format(DateLayout)
	for i := range items {
		it := &items[i]
		it.Tags = tagsFor(*it, qc.Category)
		if it.Source == "" {
			it.Source = p.source(qc.Tool)
		}
		it.Quality = quality(*it)
		it.ProcessedAt = processedAt
	}
}

func (p *Processor) source(toolName string) string {
	if s, ok := p.sources[toolName]; ok {
		return s
	}
	return "unknown"
}

// tagsFor returns the query category, title keyword tags and the item's own
// tags, deduplicated in that order.
func tagsFor(it Item, c tool.Category) []string {
	out := make([]string, 0, len(it.Tags)+2)
	add := func(tag string) {
		if tag != "" && !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	if c != tool.CategoryGeneral {
		add(string(c))
	}
	title := strings.ToLower(it.Title)
	for _, tt := range titleTags {
		for _, w := range tt.words {
			if strings.Contains(title, w) {
				add(tt.tag)
				break
			}
		}
	}
	for _, tag := range it.Tags {
		add(tag)
	}
	return out
}

// quality scores how complete an item is, in [0, 1].
func quality(it Item) float64 {
	score := 0.3 // title is required
	if it.Description != "" {
		score += 0.15
	}
	if it.EndDate != "" {
		score += 0.15
	}
	if it.URL != "" {
		score += 0.15
	}
	if it.Volume > 0 {
		score += 0.15
	}
	if it.Symbol != "" || it.Image != "" || it.Price != nil || it.Analysis != nil {
		score += 0.1
	}
	return math.Round(math.Min(score, 1)*100) / 100
}

// sortItems orders by volume descending, then end date ascending with
// undated items last. The sort is stable.
func sortItems(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		switch {
		case a.Volume > b.Volume:
			return -1
		case a.Volume < b.Volume:
			return 1
		}
		switch {
		case a.end.IsZero() && b.end.IsZero():
			return 0
		case a.end.IsZero():
			return 1
		case b.end.IsZero():
			return -1
		}
		return a.end.Compare(b.end)
	})
}

func page(items []Item, offset, limit int) []Item {
	if offset >= len(items) {
		return []Item{}
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
