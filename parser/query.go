package parser

import (
	"time"

	"github.com/jonwraymond/toolquery/tool"
)

// Query is the structured form of a free-text request. Parse always returns
// a usable Query; problems are recorded in Degraded instead of failing.
type Query struct {
	// Text is the original input.
	Text string `json:"text"`

	Category tool.Category `json:"category"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`

	// Terms are the tokens that matched the vocabulary or a tool alias, in
	// input order.
	Terms []string `json:"terms"`

	// Matches holds one entry per vocabulary hit, in input order.
	Matches []Match `json:"matches,omitempty"`

	// Fuzzy is true when Category came from a fuzzy match.
	Fuzzy bool `json:"fuzzy,omitempty"`

	// ToolHint names the tool whose alias appeared verbatim in the text.
	ToolHint string `json:"toolHint,omitempty"`

	// Intents name the tools the wording suggests, strongest first. Unlike
	// ToolHint they only steer routing among tools able to answer.
	Intents []string `json:"intents,omitempty"`

	Sort       Sort       `json:"sort,omitempty"`
	TimeFilter TimeFilter `json:"timeFilter,omitempty"`

	Degraded []string `json:"degraded,omitempty"`
}

// Match is one token resolved against the vocabulary.
type Match struct {
	Token    string        `json:"token"`
	Keyword  string        `json:"keyword"`
	Category tool.Category `json:"category"`
	Score    float64       `json:"score"`
	Fuzzy    bool          `json:"fuzzy,omitempty"`
}

// Degradation reasons recorded on Query.Degraded.
const (
	DegradedNoCategory    = "no_category"
	DegradedFuzzyCategory = "fuzzy_category"
	DegradedLimitClamped  = "limit_clamped"
	DegradedOffsetClamped = "offset_clamped"
)

// Sort is a provider ordering requested in the text.
type Sort string

const (
	SortNone        Sort = ""
	SortGalaxyScore Sort = "gs"
	SortMarketCap   Sort = "mc"
	SortVolume      Sort = "v"
)

// TimeFilter is a relative window mentioned in the text.
type TimeFilter string

const (
	TimeNone     TimeFilter = ""
	TimeToday    TimeFilter = "today"
	TimeTomorrow TimeFilter = "tomorrow"
	TimeThisWeek TimeFilter = "this_week"
	TimeNextWeek TimeFilter = "next_week"
)

// TimeRange resolves a filter to the half-open window [start, end) in now's
// location. Weeks start on Monday. ok is false for TimeNone and unknown
// filters.
func TimeRange(filter TimeFilter, now time.Time) (start, end time.Time, ok bool) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sinceMonday := (int(now.Weekday()) + 6) % 7
	monday := midnight.AddDate(0, 0, -sinceMonday)

	switch filter {
	case TimeToday:
		return midnight, midnight.AddDate(0, 0, 1), true
	case TimeTomorrow:
		start = midnight.AddDate(0, 0, 1)
		return start, start.AddDate(0, 0, 1), true
	case TimeThisWeek:
		return monday, monday.AddDate(0, 0, 7), true
	case TimeNextWeek:
		start = monday.AddDate(0, 0, 7)
		return start, start.AddDate(0, 0, 7), true
	default:
		return time.Time{}, time.Time{}, false
	}
}
