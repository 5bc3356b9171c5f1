package parser

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolquery/tool"
)

// Vocabulary maps literal keywords to categories and tool aliases to tool
// names. Intents and patterns name the tool a query is phrased for without
// forcing it. It is the YAML document consumed by LoadVocabulary:
//
//	keywords:
//	  trump: politics
//	  bitcoin: crypto
//	aliases:
//	  polymarket: get_events
//	intents:
//	  coins: get_crypto_sentiment
//	patterns:
//	  'go (long|short)': combined_reasoning
type Vocabulary struct {
	Keywords map[string]tool.Category `yaml:"keywords" json:"keywords"`
	Aliases  map[string]string        `yaml:"aliases,omitempty" json:"aliases,omitempty"`

	// Intents map single words to the tool they suggest.
	Intents map[string]string `yaml:"intents,omitempty" json:"intents,omitempty"`

	// Patterns map regular expressions over normalized text to the tool they
	// suggest. Pattern intents rank ahead of word intents.
	Patterns map[string]string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
}

// Tool names suggested by the default intents and patterns.
const (
	IntentEvents    = "get_events"
	IntentCoins     = "get_crypto_sentiment"
	IntentReasoning = "combined_reasoning"
)

// DefaultVocabulary returns the built-in keyword map, including common
// misspellings of the primary categories.
func DefaultVocabulary() Vocabulary {
	k := map[string]tool.Category{}
	add := func(c tool.Category, words ...string) {
		for _, w := range words {
			k[w] = c
		}
	}

	add(tool.CategoryPolitics,
		"trump", "election", "biden", "president", "politics", "political",
		"poltics", "politcs", "government", "congress", "senate", "vote", "voting")
	add(tool.CategorySports,
		"sports", "sport", "football", "basketball", "cricket", "soccer", "nfl",
		"nba", "olympics", "championship", "league", "game", "team", "player", "match")
	add(tool.CategoryCrypto,
		"crypto", "cryptp", "cryto", "cryptocurrency", "bitcoin", "ethereum",
		"btc", "eth", "blockchain", "defi")
	add(tool.CategoryGeneral, "prediction", "event", "events")
	add(tool.CategoryTechnology,
		"technology", "tech", "ai", "artificial", "tesla", "meta", "google", "apple")
	add(tool.CategoryEconomics,
		"economics", "economy", "inflation", "recession", "oil", "stock")
	add(tool.CategoryEnvironment, "climate", "environment", "global", "warming")

	intents := map[string]string{}
	for _, w := range []string{"events", "event", "market", "markets", "prediction", "predictions", "odds", "bets"} {
		intents[w] = IntentEvents
	}
	for _, w := range []string{"coins", "coin", "price", "prices", "sentiment", "galaxy", "marketcap", "trending", "altrank"} {
		intents[w] = IntentCoins
	}

	patterns := map[string]string{}
	for _, re := range []string{
		`take (a )?position`, `better.*position`, `go long`, `go short`, `better.*market`,
		`position.*market`, `long.*short`, `buy.*sell`, `bull.*bear`, `invest.*trade`,
	} {
		patterns[re] = IntentReasoning
	}

	return Vocabulary{Keywords: k, Intents: intents, Patterns: patterns}
}

// ParseVocabulary decodes and validates a YAML vocabulary.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("%w: %w", ErrInvalidVocabulary, err)
	}
	if err := v.Validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

// LoadVocabulary reads a YAML vocabulary file.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

// Validate checks that every keyword is a single normalized token mapped to a
// known category and that every alias names a tool.
func (v Vocabulary) Validate() error {
	if len(v.Keywords) == 0 {
		return fmt.Errorf("%w: no keywords", ErrInvalidVocabulary)
	}
	for word, c := range v.Keywords {
		if !isToken(word) {
			return fmt.Errorf("%w: keyword %q must be a single word", ErrInvalidVocabulary, word)
		}
		if !c.Valid() {
			return fmt.Errorf("%w: keyword %q has unknown category %q", ErrInvalidVocabulary, word, c)
		}
	}
	for alias, name := range v.Aliases {
		if !isToken(alias) {
			return fmt.Errorf("%w: alias %q must be a single word", ErrInvalidVocabulary, alias)
		}
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: alias %q has no tool", ErrInvalidVocabulary, alias)
		}
	}
	for word, name := range v.Intents {
		if !isToken(word) {
			return fmt.Errorf("%w: intent %q must be a single word", ErrInvalidVocabulary, word)
		}
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: intent %q has no tool", ErrInvalidVocabulary, word)
		}
	}
	for expr, name := range v.Patterns {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("%w: pattern %q: %w", ErrInvalidVocabulary, expr, err)
		}
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: pattern %q has no tool", ErrInvalidVocabulary, expr)
		}
	}
	return nil
}

func isToken(s string) bool {
	return s != "" && normalize(s) == s && !strings.Contains(s, " ")
}

// compiled is the read-only form a Parser consults on every query.
type compiled struct {
	keywords map[string]tool.Category
	keys     []string
	aliases  map[string]string
	intents  map[string]string
	patterns []pattern
}

type pattern struct {
	re   *regexp.Regexp
	tool string
}

// compile lowercases keys and merges extra aliases; entries in v win.
func compile(v Vocabulary, extra map[string]string) *compiled {
	c := &compiled{
		keywords: make(map[string]tool.Category, len(v.Keywords)),
		aliases:  make(map[string]string, len(v.Aliases)+len(extra)),
	}
	for word, cat := range v.Keywords {
		c.keywords[strings.ToLower(word)] = cat
	}
	for alias, name := range extra {
		c.aliases[strings.ToLower(alias)] = name
	}
	for alias, name := range v.Aliases {
		c.aliases[strings.ToLower(alias)] = name
	}
	c.keys = slices.Sorted(maps.Keys(c.keywords))

	c.intents = make(map[string]string, len(v.Intents))
	for word, name := range v.Intents {
		c.intents[strings.ToLower(word)] = name
	}
	for _, expr := range slices.Sorted(maps.Keys(v.Patterns)) {
		c.patterns = append(c.patterns, pattern{re: regexp.MustCompile(expr), tool: v.Patterns[expr]})
	}
	return c
}

// intentsOf lists the suggested tools, pattern matches first and then word
// intents in input order, without repeats.
func (c *compiled) intentsOf(clean string, tokens []string) []string {
	var out []string
	add := func(name string) {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, p := range c.patterns {
		if p.re.MatchString(clean) {
			add(p.tool)
		}
	}
	for _, tok := range tokens {
		if name, ok := c.intents[tok]; ok {
			add(name)
		}
	}
	return out
}

// lookup resolves a token exactly, then by fuzzy similarity. Among fuzzy
// candidates the best score wins and ties go to the lexically smallest key.
func (c *compiled) lookup(token string, threshold float64) (Match, bool) {
	if cat, ok := c.keywords[token]; ok {
		return Match{Token: token, Keyword: token, Category: cat, Score: 1}, true
	}
	if len([]rune(token)) < minFuzzyLength || noise[token] {
		return Match{}, false
	}

	best, bestScore := "", 0.0
	for _, key := range c.keys {
		score := Similarity(token, key)
		if score >= threshold && score > bestScore {
			best, bestScore = key, score
		}
	}
	if best == "" {
		return Match{}, false
	}
	return Match{
		Token:    token,
		Keyword:  best,
		Category: c.keywords[best],
		Score:    bestScore,
		Fuzzy:    true,
	}, true
}
