package adapters

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number decodes from a JSON number or a numeric string. Anything else,
// including null, decodes as zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// String decodes from a JSON string or number.
type String string

func (s *String) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = String(v)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	*s = String(data)
	return nil
}

// Tag is an upstream tag given either as a string or as an object with a
// label.
type Tag string

func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Label string `json:"label"`
			Slug  string `json:"slug"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.Label != "" {
			*t = Tag(obj.Label)
		} else {
			*t = Tag(obj.Slug)
		}
		return nil
	}
	var s String
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Tag(s)
	return nil
}

// Words splits s into lowercase letter and digit runs.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}

// MatchesAny reports whether text mentions any of terms. Terms of three
// characters or fewer must match a whole word; longer terms match as
// substrings.
func MatchesAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	var words map[string]bool
	for _, term := range terms {
		term = strings.ToLower(term)
		if len(term) > 3 {
			if strings.Contains(lower, term) {
				return true
			}
			continue
		}
		if words == nil {
			words = make(map[string]bool)
			for _, w := range Words(lower) {
				words[w] = true
			}
		}
		if words[term] {
			return true
		}
	}
	return false
}
