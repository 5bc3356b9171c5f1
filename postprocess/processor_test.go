package postprocess

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/toolquery/parser"
	"github.com/jonwraymond/toolquery/tool"
)

// Wednesday.
var fixedNow = time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)

func newTestProcessor() *Processor {
	return New(Config{Clock: func() time.Time { return fixedNow }})
}

func titles(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestProcess_ValidateDropsUntitled(t *testing.T) {
	raw := json.RawMessage(`[
		{"title": "  Will   Trump win  ", "volume": 10},
		{"description": "no title"},
		"not an object",
		{"question": "Fed cuts rates?", "volume": "25.5"}
	]`)

	resp := newTestProcessor().Process(raw, Context{Tool: "get_events", Category: tool.CategoryPolitics, Limit: 10})

	if !resp.Success {
		t.Fatalf("Success = false, error = %s", resp.Error)
	}
	if diff := cmp.Diff([]string{"Fed cuts rates?", "Will Trump win"}, titles(resp.Results)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if resp.QueryInfo.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", resp.QueryInfo.Dropped)
	}
	if resp.Results[0].Volume != 25.5 {
		t.Errorf("string volume not coerced: %v", resp.Results[0].Volume)
	}
}

func TestProcess_AllInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no titles", `[{"volume": 1}, {"description": "x"}]`},
		{"scalar payload", `42`},
		{"object without list", `{"error": "boom"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := newTestProcessor().Process(json.RawMessage(tt.raw), Context{Limit: 5})
			if resp.Success || resp.Error != CodeInvalidResponse {
				t.Errorf("resp = {Success:%v Error:%q}, want INVALID_RESPONSE", resp.Success, resp.Error)
			}
			if resp.Results == nil || resp.Count != 0 {
				t.Errorf("failed envelope must carry an empty result list, got %v", resp.Results)
			}
		})
	}
}

func TestProcess_EmptyIsSuccess(t *testing.T) {
	for _, raw := range []string{`[]`, `null`, ``, `{"data": []}`} {
		resp := newTestProcessor().Process(json.RawMessage(raw), Context{Limit: 5})
		if !resp.Success || resp.Count != 0 || resp.Results == nil {
			t.Errorf("Process(%q) = %+v", raw, resp)
		}
	}
}

func TestProcess_NormalizesDates(t *testing.T) {
	raw := json.RawMessage(`[
		{"title": "a", "endDate": "2026-11-03T12:00:00.123+02:00"},
		{"title": "b", "end_date": "2026-11-04"},
		{"title": "c", "deadline": 1793750400},
		{"title": "d", "endDate": 1793750400000},
		{"title": "e", "endDate": "soon"}
	]`)
	resp := newTestProcessor().Process(raw, Context{Limit: 10})

	got := map[string]string{}
	for _, it := range resp.Results {
		got[it.Title] = it.EndDate
	}
	want := map[string]string{
		"a": "2026-11-03T10:00:00Z",
		"b": "2026-11-04T00:00:00Z",
		"c": "2026-11-04T00:00:00Z",
		"d": "2026-11-04T00:00:00Z",
		"e": "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dates mismatch (-want +got):\n%s", diff)
	}
}

func TestProcess_SortVolumeThenEndDate(t *testing.T) {
	raw := json.RawMessage(`[
		{"title": "low", "volume": 1},
		{"title": "tie-late", "volume": 50, "endDate": "2026-12-01T00:00:00Z"},
		{"title": "tie-undated", "volume": 50},
		{"title": "tie-early", "volume": 50, "endDate": "2026-06-01T00:00:00Z"},
		{"title": "high", "volume": 99}
	]`)
	resp := newTestProcessor().Process(raw, Context{Limit: 10})

	want := []string{"high", "tie-early", "tie-late", "tie-undated", "low"}
	if diff := cmp.Diff(want, titles(resp.Results)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestProcess_OffsetAndLimit(t *testing.T) {
	raw := json.RawMessage(`[
		{"title": "a", "volume": 5},
		{"title": "b", "volume": 4},
		{"title": "c", "volume": 3},
		{"title": "d", "volume": 2},
		{"title": "e", "volume": 1}
	]`)
	tests := []struct {
		offset, limit int
		want          []string
	}{
		{0, 3, []string{"a", "b", "c"}},
		{2, 2, []string{"c", "d"}},
		{4, 5, []string{"e"}},
		{5, 5, []string{}},
		{100, 1, []string{}},
	}
	for _, tt := range tests {
		resp := newTestProcessor().Process(raw, Context{Offset: tt.offset, Limit: tt.limit})
		if diff := cmp.Diff(tt.want, titles(resp.Results)); diff != "" {
			t.Errorf("offset=%d limit=%d (-want +got):\n%s", tt.offset, tt.limit, diff)
		}
		if resp.Count != len(tt.want) || resp.QueryInfo.Total != 5 {
			t.Errorf("Count = %d, Total = %d", resp.Count, resp.QueryInfo.Total)
		}
	}
}

func TestProcess_CategoryFilter(t *testing.T) {
	raw := json.RawMessage(`[
		{"title": "keep tagged", "category": "Crypto"},
		{"title": "drop other", "category": "sports"},
		{"title": "keep untagged"}
	]`)

	resp := newTestProcessor().Process(raw, Context{Category: tool.CategoryCrypto, Limit: 10})
	if diff := cmp.Diff([]string{"keep tagged", "keep untagged"}, titles(resp.Results)); diff != "" {
		t.Errorf("crypto filter (-want +got):\n%s", diff)
	}

	resp = newTestProcessor().Process(raw, Context{Category: tool.CategoryGeneral, Limit: 10})
	if resp.Count != 3 {
		t.Errorf("general keeps everything, got %d", resp.Count)
	}
}

func TestProcess_TimeFilter(t *testing.T) {
	raw := json.RawMessage(`[
		{"title": "today", "endDate": "2026-03-18T20:00:00Z"},
		{"title": "tomorrow", "endDate": "2026-03-19T08:00:00Z"},
		{"title": "next week", "endDate": "2026-03-24T08:00:00Z"},
		{"title": "undated"}
	]`)
	tests := []struct {
		filter parser.TimeFilter
		want   []string
	}{
		{parser.TimeToday, []string{"today", "undated"}},
		{parser.TimeTomorrow, []string{"tomorrow", "undated"}},
		{parser.TimeThisWeek, []string{"today", "tomorrow", "undated"}},
		{parser.TimeNextWeek, []string{"next week", "undated"}},
		{parser.TimeNone, []string{"today", "tomorrow", "next week", "undated"}},
	}
	for _, tt := range tests {
		resp := newTestProcessor().Process(raw, Context{TimeFilter: tt.filter, Limit: 10})
		if diff := cmp.Diff(tt.want, titles(resp.Results)); diff != "" {
			t.Errorf("filter %q (-want +got):\n%s", tt.filter, diff)
		}
	}
}

func TestProcess_Enrich(t *testing.T) {
	raw := json.RawMessage(`[
		{"title": "Will Trump win the election?", "tags": ["US", {"label": "Politics"}], "url": "https://x", "volume": 3, "description": "d", "endDate": "2026-11-03"}
	]`)
	resp := newTestProcessor().Process(raw, Context{Tool: "get_events", Category: tool.CategoryPolitics, Limit: 5})

	it := resp.Results[0]
	if diff := cmp.Diff([]string{"politics", "election", "sports", "us"}, it.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if it.Source != "polymarket" {
		t.Errorf("Source = %q", it.Source)
	}
	if it.ProcessedAt != "2026-03-18T12:00:00Z" {
		t.Errorf("ProcessedAt = %q", it.ProcessedAt)
	}
	if it.Quality != 0.9 {
		t.Errorf("Quality = %v, want 0.9", it.Quality)
	}
	if resp.QueryInfo.Keyword != "politics" {
		t.Errorf("Keyword = %q", resp.QueryInfo.Keyword)
	}
}

func TestProcess_SourceFromPayloadWins(t *testing.T) {
	raw := json.RawMessage(`[{"title": "x", "source": "demo"}, {"title": "y"}]`)
	resp := New(Config{}).Process(raw, Context{Tool: "custom", Limit: 5})
	got := []string{resp.Results[0].Source, resp.Results[1].Source}
	if diff := cmp.Diff([]string{"demo", "unknown"}, got); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
}

func TestQuality_Bounds(t *testing.T) {
	price := 1.0
	full := Item{Title: "t", Description: "d", EndDate: "x", URL: "u", Volume: 1, Price: &price}
	if q := quality(full); q != 1 {
		t.Errorf("quality(full) = %v, want 1", q)
	}
	if q := quality(Item{Title: "t"}); q != 0.3 {
		t.Errorf("quality(title only) = %v, want 0.3", q)
	}
}

func TestCodeForKind(t *testing.T) {
	tests := []struct {
		kind tool.ErrorKind
		want Code
	}{
		{tool.KindTimeout, CodeUpstreamTimeout},
		{tool.KindNetwork, CodeUpstreamUnavailable},
		{tool.KindUnavailable, CodeUpstreamUnavailable},
		{tool.KindRateLimited, CodeUpstreamRateLimited},
		{tool.KindAuth, CodeUpstreamAuth},
		{tool.KindSubscription, CodeUpstreamAuth},
		{tool.KindBadRequest, CodeBadRequest},
		{tool.KindMalformed, CodeInvalidResponse},
		{tool.KindUnknown, CodeExecutionFailed},
	}
	for _, tt := range tests {
		if got := CodeForKind(tt.kind); got != tt.want {
			t.Errorf("CodeForKind(%v) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestResponse_JSONShape(t *testing.T) {
	resp := Failure(CodeNoToolAvailable, "no tools", QueryInfo{Keyword: "general", Limit: 5})
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"success", "results", "count", "error", "queryInfo"} {
		if _, ok := got[key]; !ok {
			t.Errorf("envelope missing %q: %s", key, data)
		}
	}
	if got["error"] != "NO_TOOL_AVAILABLE" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestProcess_ExplicitSortKeepsProviderOrder(t *testing.T) {
	raw := json.RawMessage(`[
		{"title": "first", "volume": 1},
		{"title": "second", "volume": 100}
	]`)
	resp := newTestProcessor().Process(raw, Context{Sort: parser.SortGalaxyScore, Limit: 5})
	if diff := cmp.Diff([]string{"first", "second"}, titles(resp.Results)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if resp.QueryInfo.Sort != "gs" {
		t.Errorf("QueryInfo.Sort = %q", resp.QueryInfo.Sort)
	}
}

func TestProcess_KeepsAnalysis(t *testing.T) {
	raw := json.RawMessage(`[{
		"title": "Position analysis: BITCOIN",
		"description": "LONG (score +3, MEDIUM confidence)",
		"source": "reasoning",
		"analysis": {
			"keyword": "bitcoin",
			"position": "LONG",
			"score": 3,
			"confidence": "MEDIUM",
			"markets": {"events": 2, "totalVolume": 900000, "averagePrice": 0.7, "bullish": 2},
			"reasons": ["a", "b", "c"],
			"sources": {"get_events": "ok", "get_crypto_sentiment": "ok"}
		}
	}]`)

	resp := newTestProcessor().Process(raw, Context{Tool: "combined_reasoning", Category: tool.CategoryCrypto, Limit: 5})
	if !resp.Success || resp.Count != 1 {
		t.Fatalf("resp = {Success:%v Count:%d Error:%s}", resp.Success, resp.Count, resp.Error)
	}
	got := resp.Results[0].Analysis
	if got == nil {
		t.Fatal("Analysis dropped")
	}
	want := &Analysis{
		Keyword:    "bitcoin",
		Position:   PositionLong,
		Score:      3,
		Confidence: ConfidenceMedium,
		Markets:    &MarketSignals{Events: 2, TotalVolume: 900000, AveragePrice: 0.7, Bullish: 2},
		Reasons:    []string{"a", "b", "c"},
		Sources:    map[string]string{"get_events": "ok", "get_crypto_sentiment": "ok"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Analysis mismatch (-want +got):\n%s", diff)
	}
	if resp.Results[0].Quality != 0.55 {
		t.Errorf("Quality = %v, want 0.55", resp.Results[0].Quality)
	}
}
