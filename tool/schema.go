package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Parameter bounds shared by every tool schema.
const (
	DefaultLimit = 5
	MinLimit     = 1
	MaxLimit     = 50
)

func ptr[T any](v T) *T { return &v }

// QuerySchema returns the parameter schema of a query-driven tool that
// accepts the given keyword categories.
func QuerySchema(keywords ...Category) *jsonschema.Schema {
	enum := make([]any, 0, len(keywords))
	for _, k := range keywords {
		enum = append(enum, string(k))
	}

	props := map[string]*jsonschema.Schema{
		"query": {
			Type:        "string",
			Description: "Natural-language request, e.g. \"show 3 trump election markets\".",
		},
		"limit": {
			Type:        "integer",
			Description: "Maximum number of results.",
			Minimum:     ptr(float64(MinLimit)),
			Maximum:     ptr(float64(MaxLimit)),
			Default:     json.RawMessage(fmt.Sprint(DefaultLimit)),
		},
		"offset": {
			Type:        "integer",
			Description: "Number of results to skip.",
			Minimum:     ptr(0.0),
			Default:     json.RawMessage("0"),
		},
	}
	if len(enum) > 0 {
		props["keyword"] = &jsonschema.Schema{
			Type:        "string",
			Description: "Category override. Inferred from the query when omitted.",
			Enum:        enum,
		}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{"query"},
	}
}

// Args are the decoded arguments of an explicit tool call.
type Args struct {
	Query   string   `json:"query"`
	Keyword Category `json:"keyword,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
	Offset  *int     `json:"offset,omitempty"`
}

// DecodeArgs parses raw JSON call arguments. Empty input yields zero Args.
func DecodeArgs(raw json.RawMessage) (Args, error) {
	var args Args
	if len(strings.TrimSpace(string(raw))) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return Args{}, fmt.Errorf("tool: decode arguments: %w", err)
	}
	if args.Keyword != "" && !args.Keyword.Valid() {
		return Args{}, fmt.Errorf("tool: unknown keyword %q", args.Keyword)
	}
	return args, nil
}
