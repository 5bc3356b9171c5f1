package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/tool"
)

var (
	ErrInvalidVocabulary = errors.New("parser: invalid vocabulary")
	ErrInvalidConfig     = errors.New("parser: invalid config")
)

// Defaults applied by New.
const (
	DefaultFuzzyThreshold = 0.8
	DefaultMaxOffset      = 1000
)

// Config configures a Parser. Zero values take defaults.
type Config struct {
	// FuzzyThreshold is the minimum Similarity accepted for a fuzzy match.
	FuzzyThreshold float64

	DefaultLimit int
	MinLimit     int
	MaxLimit     int
	MaxOffset    int

	// Aliases maps tool aliases to tool names, typically tool.Registry.Aliases.
	// Aliases in the vocabulary override these.
	Aliases map[string]string

	Logger observe.Logger
}

func (c *Config) applyDefaults() {
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = tool.DefaultLimit
	}
	if c.MinLimit <= 0 {
		c.MinLimit = tool.MinLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = tool.MaxLimit
	}
	if c.MaxOffset <= 0 {
		c.MaxOffset = DefaultMaxOffset
	}
}

func (c Config) validate() error {
	if c.FuzzyThreshold > 1 {
		return fmt.Errorf("%w: fuzzy threshold %v above 1", ErrInvalidConfig, c.FuzzyThreshold)
	}
	if c.MinLimit > c.MaxLimit || c.DefaultLimit < c.MinLimit || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("%w: limits must satisfy min <= default <= max (%d, %d, %d)",
			ErrInvalidConfig, c.MinLimit, c.DefaultLimit, c.MaxLimit)
	}
	return nil
}

// Parser turns free text into a Query.
//
// Contract:
// - Concurrency: safe for concurrent use; SetVocabulary swaps an immutable
// snapshot, so a Parse in flight sees either the old or the new vocabulary.
// - Errors: Parse never fails.
type Parser struct {
	cfg    Config
	vocab  atomic.Pointer[compiled]
	logger observe.Logger
}

// New creates a parser over vocabulary v.
func New(v Vocabulary, cfg Config) (*Parser, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Parser{cfg: cfg, logger: cfg.Logger}
	if err := p.SetVocabulary(v); err != nil {
		return nil, err
	}
	return p, nil
}

// SetVocabulary validates v and makes it visible to subsequent Parse calls.
func (p *Parser) SetVocabulary(v Vocabulary) error {
	if err := v.Validate(); err != nil {
		return err
	}
	p.vocab.Store(compile(v, p.cfg.Aliases))
	return nil
}

// Config returns the effective configuration.
func (p *Parser) Config() Config {
	return p.cfg
}

// Parse resolves category, limit, offset, sort, time filter, tool hint and
// intents.
func (p *Parser) Parse(text string) Query {
	v := p.vocab.Load()
	q := Query{
		Text:     text,
		Category: tool.CategoryGeneral,
		Limit:    p.cfg.DefaultLimit,
		Terms:    []string{},
	}

	clean := normalize(text)
	p.extractNumbers(&q, strings.Fields(clean))
	q.TimeFilter = timeFilterOf(clean)

	tokens := strings.Fields(substitute(clean))
	q.Sort = sortOf(tokens)
	q.Intents = v.intentsOf(clean, tokens)

	for _, tok := range tokens {
		if isNumber(tok) {
			continue
		}
		if name, ok := v.aliases[tok]; ok {
			if q.ToolHint == "" {
				q.ToolHint = name
			}
			q.Terms = append(q.Terms, tok)
			continue
		}
		m, ok := v.lookup(tok, p.cfg.FuzzyThreshold)
		if !ok {
			continue
		}
		q.Terms = append(q.Terms, tok)
		q.Matches = append(q.Matches, m)
	}

	q.Category, q.Fuzzy = resolveCategory(q.Matches)
	switch {
	case q.Category == tool.CategoryGeneral:
		q.Degraded = append(q.Degraded, DegradedNoCategory)
	case q.Fuzzy:
		q.Degraded = append(q.Degraded, DegradedFuzzyCategory)
	}

	if p.logger != nil {
		p.logger.Debug(context.Background(), "query parsed",
			observe.Field{Key: "category", Value: string(q.Category)},
			observe.Field{Key: "limit", Value: q.Limit},
			observe.Field{Key: "offset", Value: q.Offset},
			observe.Field{Key: "fuzzy", Value: q.Fuzzy},
		)
	}
	return q
}

// resolveCategory picks the leftmost exact specific match, else the leftmost
// fuzzy specific match, else general.
func resolveCategory(matches []Match) (tool.Category, bool) {
	for _, m := range matches {
		if !m.Fuzzy && m.Category != tool.CategoryGeneral {
			return m.Category, false
		}
	}
	for _, m := range matches {
		if m.Fuzzy && m.Category != tool.CategoryGeneral {
			return m.Category, true
		}
	}
	return tool.CategoryGeneral, false
}

// extractNumbers reads the limit and offset from raw tokens. A number counts
// as the limit only with a quantity context: a preceding limit word, or a
// result noun within the next two tokens. Year-like numbers need the
// preceding word.
func (p *Parser) extractNumbers(q *Query, raw []string) {
	limitSet, offsetSet := false, false
	for i, tok := range raw {
		if !isNumber(tok) {
			continue
		}
		n := atoi(tok)
		prev := previousWord(raw, i)

		switch {
		case offsetContext[prev]:
			if !offsetSet {
				q.Offset = p.clampOffset(q, n)
				offsetSet = true
			}
		case limitContext[prev]:
			if !limitSet {
				q.Limit = p.clampLimit(q, n)
				limitSet = true
			}
		case !isYear(tok) && nounFollows(raw, i):
			if !limitSet {
				q.Limit = p.clampLimit(q, n)
				limitSet = true
			}
		}
	}
}

func (p *Parser) clampLimit(q *Query, n int) int {
	switch {
	case n < p.cfg.MinLimit:
		q.Degraded = append(q.Degraded, DegradedLimitClamped)
		return p.cfg.MinLimit
	case n > p.cfg.MaxLimit:
		q.Degraded = append(q.Degraded, DegradedLimitClamped)
		return p.cfg.MaxLimit
	}
	return n
}

func (p *Parser) clampOffset(q *Query, n int) int {
	if n > p.cfg.MaxOffset {
		q.Degraded = append(q.Degraded, DegradedOffsetClamped)
		return p.cfg.MaxOffset
	}
	return n
}

// previousWord skips filler so "show me 5" reads as "show 5".
func previousWord(raw []string, i int) string {
	for j := i - 1; j >= 0; j-- {
		switch raw[j] {
		case "me", "the", "us":
			continue
		}
		return raw[j]
	}
	return ""
}

func nounFollows(raw []string, i int) bool {
	for j := i + 1; j < len(raw) && j <= i+2; j++ {
		if resultNouns[raw[j]] {
			return true
		}
	}
	return false
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isYear(s string) bool {
	return len(s) == 4 && (strings.HasPrefix(s, "19") || strings.HasPrefix(s, "20"))
}

// atoi saturates instead of failing on very long digit runs.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
