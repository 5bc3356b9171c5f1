package router

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/toolquery/parser"
	"github.com/jonwraymond/toolquery/tool"
)

// ErrNoToolAvailable is returned when no tool is registered at all.
var ErrNoToolAvailable = errors.New("router: no tool available")

// Confidence levels assigned by Route.
const (
	HintConfidence  = 1.0
	ExactConfidence = 0.9
	FuzzyConfidence = 0.7

	DefaultConfidenceThreshold = 0.6
)

// Reasons reported on Decision.Reason.
const (
	ReasonHint          = "hint"
	ReasonIntent        = "intent"
	ReasonCategory      = "category"
	ReasonFuzzyCategory = "fuzzy_category"
	ReasonFallback      = "fallback"
)

// Degradation reasons reported on Decision.Degraded.
const (
	DegradedUnknownHint   = "unknown_tool_hint"
	DegradedLowConfidence = "low_confidence"
)

// Decision is the outcome of routing one query.
type Decision struct {
	Tool       string   `json:"tool"`
	Confidence float64  `json:"confidence"`
	Fallbacks  []string `json:"fallbacks,omitempty"`
	Reason     string   `json:"reason"`
	Degraded   []string `json:"degraded,omitempty"`
}

// Catalog is the read side of tool.Registry.
type Catalog interface {
	Adapters() []tool.Adapter
}

// Config configures a Router.
type Config struct {
	// ConfidenceThreshold marks decisions below it as low confidence.
	// Default: 0.6
	ConfidenceThreshold float64
}

// Router selects a tool for a parsed query. It is deterministic for a given
// catalog and query, and safe for concurrent use when the catalog is.
type Router struct {
	catalog   Catalog
	threshold float64
}

// New creates a router over catalog.
func New(catalog Catalog, cfg Config) *Router {
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &Router{catalog: catalog, threshold: cfg.ConfidenceThreshold}
}

// Threshold returns the confidence threshold.
func (r *Router) Threshold() float64 {
	return r.threshold
}

// FallbackConfidence is the confidence given to the fallback tool. It stays
// below the threshold so callers can tell a guess from a match.
func (r *Router) FallbackConfidence() float64 {
	return max(0, min(0.5, r.threshold-0.1))
}

// Route picks the tool for q.
//
// Matching order:
//  1. A tool hint naming a registered tool wins with HintConfidence.
//  2. The first intent naming a registered tool that can answer the
//     category wins with ExactConfidence. A tool with no capabilities can
//     answer any category, and any tool can answer general.
//  3. The first tool, in declaration order, whose capabilities include the
//     category wins; the other capable tools become fallbacks. When the
//     query asks for a sort, a capable tool honoring it goes first.
//  4. Otherwise the first tool flagged as a fallback (or the first tool)
//     is chosen with FallbackConfidence.
//
// Route fails only when no tool is registered.
func (r *Router) Route(q parser.Query) (Decision, error) {
	adapters := r.catalog.Adapters()
	if len(adapters) == 0 {
		return Decision{}, ErrNoToolAvailable
	}

	descs := make([]tool.Descriptor, len(adapters))
	for i, a := range adapters {
		descs[i] = a.Descriptor()
	}

	var degraded []string
	if q.ToolHint != "" {
		for _, d := range descs {
			if d.Name == q.ToolHint {
				return Decision{
					Tool:       d.Name,
					Confidence: HintConfidence,
					Fallbacks:  capable(descs, q.Category, d.Name),
					Reason:     ReasonHint,
				}, nil
			}
		}
		degraded = append(degraded, DegradedUnknownHint)
	}

	for _, name := range q.Intents {
		i := slices.IndexFunc(descs, func(d tool.Descriptor) bool { return d.Name == name })
		if i < 0 || !answers(descs[i], q.Category) {
			continue
		}
		d := Decision{
			Tool:       name,
			Confidence: ExactConfidence,
			Fallbacks:  capable(descs, q.Category, name),
			Reason:     ReasonIntent,
			Degraded:   degraded,
		}
		if f := fallbackTool(descs); q.Category == tool.CategoryGeneral && f != name {
			d.Fallbacks = []string{f}
		}
		if d.Confidence < r.threshold {
			d.Degraded = append(d.Degraded, DegradedLowConfidence)
		}
		return d, nil
	}

	if matches := preferSort(descs, capable(descs, q.Category, ""), string(q.Sort)); len(matches) > 0 {
		d := Decision{
			Tool:       matches[0],
			Confidence: ExactConfidence,
			Fallbacks:  matches[1:],
			Reason:     ReasonCategory,
			Degraded:   degraded,
		}
		if q.Fuzzy {
			d.Confidence = FuzzyConfidence
			d.Reason = ReasonFuzzyCategory
		}
		if d.Confidence < r.threshold {
			d.Degraded = append(d.Degraded, DegradedLowConfidence)
		}
		if len(d.Fallbacks) == 0 {
			d.Fallbacks = nil
		}
		return d, nil
	}

	return Decision{
		Tool:       fallbackTool(descs),
		Confidence: r.FallbackConfidence(),
		Reason:     ReasonFallback,
		Degraded:   append(degraded, DegradedLowConfidence),
	}, nil
}

// capable lists tools serving c in declaration order, skipping exclude.
func capable(descs []tool.Descriptor, c tool.Category, exclude string) []string {
	var names []string
	for _, d := range descs {
		if d.Name != exclude && d.Serves(c) {
			names = append(names, d.Name)
		}
	}
	return names
}

// fallbackTool is the first tool flagged as a fallback, else the first tool.
func fallbackTool(descs []tool.Descriptor) string {
	for _, d := range descs {
		if d.Fallback {
			return d.Name
		}
	}
	return descs[0].Name
}

// answers reports whether d can take a query about c.
func answers(d tool.Descriptor, c tool.Category) bool {
	return len(d.Capabilities) == 0 || c == tool.CategoryGeneral || d.Serves(c)
}

// preferSort moves the first tool honoring sort to the front, keeping the
// others in order.
func preferSort(descs []tool.Descriptor, names []string, sort string) []string {
	for i, name := range names {
		j := slices.IndexFunc(descs, func(d tool.Descriptor) bool { return d.Name == name })
		if !descs[j].Orders(sort) {
			continue
		}
		if i == 0 {
			return names
		}
		out := append([]string{name}, names[:i]...)
		return append(out, names[i+1:]...)
	}
	return names
}

// String renders a decision for logs.
func (d Decision) String() string {
	return fmt.Sprintf("%s (%.2f, %s)", d.Tool, d.Confidence, d.Reason)
}
