package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minFuzzyLength is the shortest token considered for fuzzy matching.
const minFuzzyLength = 4

// phrases run in order over normalized text before tokenizing.
var phrases = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\b(fetch|get|show|give) me\b`), ""},
	{regexp.MustCompile(`\b(find|list|display)\b`), ""},
	{regexp.MustCompile(`\bevents? for\b`), ""},
	{regexp.MustCompile(`\b(some|any)\b`), ""},
	{regexp.MustCompile(`\bmarket cap\b`), "marketcap"},
}

// limitContext words make a following number the result limit.
var limitContext = set("limit", "top", "show", "first", "get", "fetch", "give", "list")

// offsetContext words make a following number the offset.
var offsetContext = set("offset", "skip")

// resultNouns make a preceding number the result limit.
var resultNouns = set(
	"events", "markets", "results", "items", "coins", "predictions", "bets",
	"questions", "tokens", "entries")

// noise tokens are never fuzzy matched against the vocabulary.
var noise = union(limitContext, offsetContext, resultNouns, set(
	"today", "tomorrow", "this", "next", "week", "market", "marketcap",
	"trending", "volume", "about", "with", "from", "that", "what", "will"))

var timeFilters = []struct {
	re     *regexp.Regexp
	filter TimeFilter
}{
	{regexp.MustCompile(`\btoday\b`), TimeToday},
	{regexp.MustCompile(`\btomorrow\b`), TimeTomorrow},
	{regexp.MustCompile(`\bthis week\b`), TimeThisWeek},
	{regexp.MustCompile(`\bnext week\b`), TimeNextWeek},
}

// normalize strips diacritics, lowercases, turns punctuation into spaces and
// collapses whitespace.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// substitute applies the phrase rewrites to normalized text.
func substitute(s string) string {
	for _, p := range phrases {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return strings.Join(strings.Fields(s), " ")
}

func timeFilterOf(s string) TimeFilter {
	for _, tf := range timeFilters {
		if tf.re.MatchString(s) {
			return tf.filter
		}
	}
	return TimeNone
}

func sortOf(tokens []string) Sort {
	has := func(words ...string) bool {
		for _, t := range tokens {
			for _, w := range words {
				if t == w {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("trending"):
		return SortGalaxyScore
	case has("marketcap", "cap"):
		return SortMarketCap
	case has("volume"):
		return SortVolume
	}
	return SortNone
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func union(sets ...map[string]bool) map[string]bool {
	m := make(map[string]bool)
	for _, s := range sets {
		for w := range s {
			m[w] = true
		}
	}
	return m
}
