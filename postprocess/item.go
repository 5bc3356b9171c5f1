package postprocess

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the normalized form of every date in an Item: RFC 3339, UTC,
// second precision, "Z" suffix.
const DateLayout = "2006-01-02T15:04:05Z"

// Item is one normalized result.
type Item struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	Volume      float64 `json:"volume"`
	URL         string  `json:"url,omitempty"`
	MarketSlug  string  `json:"marketSlug,omitempty"`
	Image       string  `json:"image,omitempty"`
	Category    string  `json:"category,omitempty"`

	Symbol           string   `json:"symbol,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	MarketCap        *float64 `json:"marketCap,omitempty"`
	PercentChange24h *float64 `json:"percentChange24h,omitempty"`
	GalaxyScore      *float64 `json:"galaxyScore,omitempty"`
	AltRank          *float64 `json:"altRank,omitempty"`
	Sentiment        string   `json:"sentiment,omitempty"`

	Analysis *Analysis `json:"analysis,omitempty"`

	Tags        []string `json:"tags"`
	Source      string   `json:"source"`
	Quality     float64  `json:"quality"`
	ProcessedAt string   `json:"processedAt"`

	end time.Time
}

// dateLayouts are tried in order when parsing string dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// decodeItems splits raw into per-item objects. raw may be an array or an
// object wrapping one under results, data, events or coins.
func decodeItems(raw json.RawMessage) ([]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	for _, field := range []string{"results", "data", "events", "coins"} {
		if inner, ok := wrapper[field]; ok {
			if err := json.Unmarshal(inner, &list); err == nil {
				return list, true
			}
		}
	}
	return nil, false
}

// validate builds an Item from one raw object. ok is false when the object
// is not a JSON object or has no usable title.
func validate(raw json.RawMessage) (Item, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return Item{}, false
	}

	it := Item{
		ID:          str(m, "id"),
		Title:       clean(str(m, "title", "question", "name")),
		Description: clean(str(m, "description")),
		URL:         str(m, "url"),
		MarketSlug:  str(m, "marketSlug", "market_slug", "slug"),
		Image:       str(m, "image"),
		Category:    strings.ToLower(str(m, "category")),
		Symbol:      str(m, "symbol"),
		Sentiment:   str(m, "sentiment"),
		Source:      str(m, "source"),
		Tags:        tags(m["tags"]),
	}
	if it.Title == "" {
		return Item{}, false
	}

	if v, ok := num(m, "volume", "trading_volume", "volume_24h", "volume24h"); ok {
		it.Volume = v
	}
	it.Price = numPtr(m, "price")
	it.MarketCap = numPtr(m, "marketCap", "market_cap")
	it.PercentChange24h = numPtr(m, "percentChange24h", "percent_change_24h")
	it.GalaxyScore = numPtr(m, "galaxyScore", "galaxy_score")
	it.AltRank = numPtr(m, "altRank", "alt_rank")

	if end, ok := date(first(m, "endDate", "end_date", "deadline")); ok {
		it.end = end
		it.EndDate = end.Format(DateLayout)
	}

	if _, ok := m["analysis"]; ok {
		var wrapped struct {
			Analysis *Analysis `json:"analysis"`
		}
		if err := json.Unmarshal(raw, &wrapped); err == nil {
			it.Analysis = wrapped.Analysis
		}
	}
	return it, true
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(m map[string]any, keys ...string) string {
	switch v := first(m, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func num(m map[string]any, keys ...string) (float64, bool) {
	return toFloat(first(m, keys...))
}

func numPtr(m map[string]any, keys ...string) *float64 {
	if v, ok := num(m, keys...); ok {
		return &v
	}
	return nil
}

// date accepts RFC 3339-like strings and unix timestamps in seconds or
// milliseconds.
func date(v any) (time.Time, bool) {
	switch d := v.(type) {
	case string:
		d = strings.TrimSpace(d)
		if d == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t.UTC().Truncate(time.Second), true
			}
		}
		return time.Time{}, false
	case json.Number:
		f, err := d.Float64()
		if err != nil || f <= 0 {
			return time.Time{}, false
		}
		if f > 1e12 {
			return time.UnixMilli(int64(f)).UTC().Truncate(time.Second), true
		}
		return time.Unix(int64(f), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// tags accepts a list of strings or of objects carrying a label.
func tags(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, t := range list {
		switch tag := t.(type) {
		case string:
			if s := strings.ToLower(strings.TrimSpace(tag)); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			if s := strings.ToLower(str(tag, "label", "slug", "name")); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
