package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/toolquery/executor"
	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/parser"
	"github.com/jonwraymond/toolquery/postprocess"
	"github.com/jonwraymond/toolquery/resilience"
	"github.com/jonwraymond/toolquery/router"
	"github.com/jonwraymond/toolquery/tool"
)

// Sentinel errors returned by New.
var (
	ErrNilRegistry = errors.New("pipeline: registry is nil")
	ErrNilParser   = errors.New("pipeline: parser is nil")
	ErrNilExecutor = errors.New("pipeline: executor is nil")
)

// DegradedFallbackPrefix marks a query answered by a fallback tool. The
// full reason is DegradedFallbackPrefix + tool name.
const DegradedFallbackPrefix = "fallback_tool:"

// Request is one query as received from a transport.
type Request struct {
	// Query is the free text to interpret.
	Query string `json:"query"`

	// Tool forces a tool by name, as if its alias appeared in the text.
	Tool string `json:"tool,omitempty"`

	// Limit and Offset override the values parsed from the text.
	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`
}

// Config configures a Pipeline.
type Config struct {
	// Registry holds the adapters. Required.
	Registry *tool.Registry

	// Parser interprets free text. Required.
	Parser *parser.Parser

	// Executor runs adapters behind the cache. Required.
	Executor *executor.Executor

	// Router selects tools. Default: router.New(Registry, router.Config{}).
	Router *router.Router

	// Processor shapes raw payloads. Default: postprocess.New with defaults.
	Processor *postprocess.Processor

	// Middleware instruments stages. Nil records nothing.
	Middleware *observe.Middleware

	// Options apply to every execution.
	Options []executor.Option

	// NewRequestID generates request IDs. Default: uuid.NewString.
	NewRequestID func() string

	// Clock overrides time.Now for elapsed times.
	Clock func() time.Time
}

// Pipeline is the single entry point transports call. It runs Parser,
// Router, Executor and Processor strictly in that order.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: Run never fails; every problem is reported in the envelope.
//   - Panics: recovered into an INTERNAL envelope.
type Pipeline struct {
	registry  *tool.Registry
	parser    *parser.Parser
	router    *router.Router
	executor  *executor.Executor
	processor *postprocess.Processor
	mw        *observe.Middleware
	opts      []executor.Option
	newID     func() string
	now       func() time.Time
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Registry == nil:
		return nil, ErrNilRegistry
	case cfg.Parser == nil:
		return nil, ErrNilParser
	case cfg.Executor == nil:
		return nil, ErrNilExecutor
	}
	if cfg.Router == nil {
		cfg.Router = router.New(cfg.Registry, router.Config{})
	}
	if cfg.Middleware == nil {
		cfg.Middleware = observe.NopMiddleware()
	}
	if cfg.Processor == nil {
		cfg.Processor = postprocess.New(postprocess.Config{Logger: cfg.Middleware.Logger()})
	}
	if cfg.NewRequestID == nil {
		cfg.NewRequestID = uuid.NewString
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Pipeline{
		registry:  cfg.Registry,
		parser:    cfg.Parser,
		router:    cfg.Router,
		executor:  cfg.Executor,
		processor: cfg.Processor,
		mw:        cfg.Middleware,
		opts:      cfg.Options,
		newID:     cfg.NewRequestID,
		now:       cfg.Clock,
	}, nil
}

// Tools returns the schema listing of every registered tool.
func (p *Pipeline) Tools() []tool.Listing {
	return p.registry.List()
}

// Registry returns the tool registry.
func (p *Pipeline) Registry() *tool.Registry {
	return p.registry
}

// Parse interprets text without executing anything.
func (p *Pipeline) Parse(text string) parser.Query {
	return p.parser.Parse(text)
}

// Query runs free text through the pipeline with no overrides.
func (p *Pipeline) Query(ctx context.Context, text string) postprocess.Response {
	return p.Run(ctx, Request{Query: text})
}

// Run interprets req, executes the selected tool and returns the envelope.
func (p *Pipeline) Run(ctx context.Context, req Request) (resp postprocess.Response) {
	start := p.now()
	id := p.newID()
	ctx = observe.WithRequestID(ctx, id)
	ctx, finish := p.mw.StartQuery(ctx, attribute.String("query.request_id", id))

	category := string(tool.CategoryGeneral)
	defer func() {
		if r := recover(); r != nil {
			p.mw.Logger().Error(ctx, "pipeline panic", observe.Field{Key: "panic", Value: fmt.Sprint(r)})
			resp = postprocess.Failure(postprocess.CodeInternal, "internal error", postprocess.QueryInfo{Keyword: category})
		}
		resp.QueryInfo.RequestID = id
		resp.QueryInfo.Query = req.Query
		resp.QueryInfo.ElapsedMs = millis(p.now().Sub(start))
		finish(category, string(resp.Error))
		p.logOutcome(ctx, resp)
	}()

	if strings.TrimSpace(req.Query) == "" && req.Tool == "" {
		return postprocess.Failure(postprocess.CodeBadRequest, "query is empty", postprocess.QueryInfo{Keyword: category})
	}

	var q parser.Query
	_ = p.mw.Stage(ctx, observe.StageParse, func(context.Context) error {
		q = p.parser.Parse(req.Query)
		p.applyOverrides(&q, req)
		return nil
	})
	category = string(q.Category)
	info := infoFor(q)

	var decision router.Decision
	err := p.mw.Stage(ctx, observe.StageRoute, func(context.Context) error {
		var err error
		decision, err = p.router.Route(q)
		return err
	}, attribute.String("query.category", category))
	if err != nil {
		if errors.Is(err, router.ErrNoToolAvailable) {
			return postprocess.Failure(postprocess.CodeNoToolAvailable, "no tool is registered", info)
		}
		return postprocess.Failure(postprocess.CodeInternal, err.Error(), info)
	}
	info.Confidence = decision.Confidence
	info.Reason = decision.Reason
	info.Degraded = merge(info.Degraded, decision.Degraded)

	params := paramsFor(q)
	res, degraded := p.execute(ctx, decision, params)
	info.Degraded = merge(info.Degraded, degraded)

	return p.finish(ctx, res, params, info)
}

// CallTool executes the named tool directly with params, skipping parsing
// and routing. Limit and offset are clamped like parsed values.
func (p *Pipeline) CallTool(ctx context.Context, name string, params tool.Params) (resp postprocess.Response) {
	start := p.now()
	id := p.newID()
	ctx = observe.WithRequestID(ctx, id)
	ctx, finish := p.mw.StartQuery(ctx, attribute.String("query.request_id", id), attribute.String("tool.name", name))

	if params.Query != "" {
		params = p.fillFromText(params)
	}
	if params.Category == "" {
		params.Category = tool.CategoryGeneral
	}
	defer func() {
		if r := recover(); r != nil {
			p.mw.Logger().Error(ctx, "pipeline panic", observe.Field{Key: "panic", Value: fmt.Sprint(r)})
			resp = postprocess.Failure(postprocess.CodeInternal, "internal error", postprocess.QueryInfo{Keyword: string(params.Category)})
		}
		resp.QueryInfo.RequestID = id
		resp.QueryInfo.ElapsedMs = millis(p.now().Sub(start))
		finish(string(params.Category), string(resp.Error))
		p.logOutcome(ctx, resp)
	}()

	var degraded []string
	params, degraded = p.clampParams(params)
	info := postprocess.QueryInfo{
		Query:      params.Query,
		Keyword:    string(params.Category),
		Limit:      params.Limit,
		Offset:     params.Offset,
		Terms:      params.Terms,
		Sort:       params.Sort,
		TimeFilter: params.TimeFilter,
		Tool:       name,
		Confidence: router.HintConfidence,
		Reason:     router.ReasonHint,
		Degraded:   degraded,
	}
	if !params.Category.Valid() {
		return postprocess.Failure(postprocess.CodeBadRequest, fmt.Sprintf("unknown keyword %q", params.Category), info)
	}

	a, err := p.registry.Get(name)
	if err != nil {
		if p.registry.Len() == 0 {
			return postprocess.Failure(postprocess.CodeNoToolAvailable, "no tool is registered", info)
		}
		return postprocess.Failure(postprocess.CodeBadRequest, err.Error(), info)
	}
	res := p.executor.Execute(ctx, a, params, p.opts...)
	return p.finish(ctx, res, params, info)
}

// execute runs the selected tool, then each fallback in order until one
// succeeds. It returns the last result and a degradation reason per
// fallback tried.
func (p *Pipeline) execute(ctx context.Context, d router.Decision, params tool.Params) (executor.Result, []string) {
	res := p.executeTool(ctx, d.Tool, params)
	var degraded []string
	for _, name := range d.Fallbacks {
		if res.Success || ctx.Err() != nil {
			break
		}
		p.mw.Logger().Warn(ctx, "tool failed, trying fallback",
			observe.Field{Key: "tool", Value: res.Tool},
			observe.Field{Key: "fallback", Value: name},
			observe.Field{Key: "error", Value: errString(res.Err)},
		)
		degraded = append(degraded, DegradedFallbackPrefix+name)
		res = p.executeTool(ctx, name, params)
	}
	return res, degraded
}

func (p *Pipeline) executeTool(ctx context.Context, name string, params tool.Params) executor.Result {
	a, err := p.registry.Get(name)
	if err != nil {
		return executor.Result{Tool: name, Kind: tool.KindBadRequest, Err: err}
	}
	return p.executor.Execute(ctx, a, params, p.opts...)
}

// finish turns an execution result into the envelope.
func (p *Pipeline) finish(ctx context.Context, res executor.Result, params tool.Params, info postprocess.QueryInfo) postprocess.Response {
	info.Tool = res.Tool
	info.CacheHit = res.CacheHit
	info.Shared = res.Shared
	info.RetryCount = res.RetryCount

	if !res.Success {
		code := postprocess.CodeForKind(res.Kind)
		if errors.Is(res.Err, resilience.ErrPanic) {
			code = postprocess.CodeInternal
		}
		return postprocess.Failure(code, errString(res.Err), info)
	}

	var resp postprocess.Response
	_ = p.mw.Stage(ctx, observe.StageProcess, func(context.Context) error {
		resp = p.processor.Process(res.Payload, postprocess.Context{
			Tool:       res.Tool,
			Category:   params.Category,
			Terms:      params.Terms,
			Limit:      params.Limit,
			Offset:     params.Offset,
			TimeFilter: parser.TimeFilter(params.TimeFilter),
			Sort:       p.honoredSort(res.Tool, params.Sort),
		})
		if !resp.Success {
			return errors.New(string(resp.Error))
		}
		return nil
	}, attribute.String("tool.name", res.Tool))

	processed := resp.QueryInfo
	resp.QueryInfo = info
	resp.QueryInfo.Total = processed.Total
	resp.QueryInfo.Dropped = processed.Dropped
	return resp
}

// honoredSort is sort when the named tool orders its results by it, and
// SortNone otherwise so the processor applies its own ordering.
func (p *Pipeline) honoredSort(name, sort string) parser.Sort {
	a, err := p.registry.Get(name)
	if err != nil || !a.Descriptor().Orders(sort) {
		return parser.SortNone
	}
	return parser.Sort(sort)
}

// applyOverrides folds request-level tool, limit and offset into q.
func (p *Pipeline) applyOverrides(q *parser.Query, req Request) {
	if req.Tool != "" {
		q.ToolHint = req.Tool
	}
	if req.Limit == nil && req.Offset == nil {
		return
	}
	params := tool.Params{Limit: q.Limit, Offset: q.Offset}
	if req.Limit != nil {
		params.Limit = *req.Limit
	}
	if req.Offset != nil {
		params.Offset = *req.Offset
	}
	params, degraded := p.clampParams(params)
	q.Limit, q.Offset = params.Limit, params.Offset
	q.Degraded = merge(q.Degraded, degraded)
}

// fillFromText completes params with what the parser reads from
// params.Query. Explicit values win.
func (p *Pipeline) fillFromText(params tool.Params) tool.Params {
	q := p.parser.Parse(params.Query)
	if params.Category == "" {
		params.Category = q.Category
	}
	if params.Terms == nil {
		params.Terms = q.Terms
	}
	if params.Limit == 0 {
		params.Limit = q.Limit
	}
	if params.Offset == 0 {
		params.Offset = q.Offset
	}
	if params.Sort == "" {
		params.Sort = string(q.Sort)
	}
	if params.TimeFilter == "" {
		params.TimeFilter = string(q.TimeFilter)
	}
	return params
}

// clampParams bounds limit and offset with the parser's configuration.
func (p *Pipeline) clampParams(params tool.Params) (tool.Params, []string) {
	cfg := p.parser.Config()
	var degraded []string
	switch {
	case params.Limit == 0:
		params.Limit = cfg.DefaultLimit
	case params.Limit < cfg.MinLimit:
		params.Limit = cfg.MinLimit
		degraded = append(degraded, parser.DegradedLimitClamped)
	case params.Limit > cfg.MaxLimit:
		params.Limit = cfg.MaxLimit
		degraded = append(degraded, parser.DegradedLimitClamped)
	}
	switch {
	case params.Offset < 0:
		params.Offset = 0
		degraded = append(degraded, parser.DegradedOffsetClamped)
	case params.Offset > cfg.MaxOffset:
		params.Offset = cfg.MaxOffset
		degraded = append(degraded, parser.DegradedOffsetClamped)
	}
	return params, degraded
}

func (p *Pipeline) logOutcome(ctx context.Context, resp postprocess.Response) {
	fields := []observe.Field{
		{Key: "keyword", Value: resp.QueryInfo.Keyword},
		{Key: "tool", Value: resp.QueryInfo.Tool},
		{Key: "count", Value: resp.Count},
		{Key: "cache_hit", Value: resp.QueryInfo.CacheHit},
		{Key: "elapsed_ms", Value: resp.QueryInfo.ElapsedMs},
	}
	if !resp.Success {
		fields = append(fields, observe.Field{Key: "code", Value: string(resp.Error)})
		p.mw.Logger().Warn(ctx, "query failed", fields...)
		return
	}
	p.mw.Logger().Info(ctx, "query completed", fields...)
}

func infoFor(q parser.Query) postprocess.QueryInfo {
	return postprocess.QueryInfo{
		Keyword:    string(q.Category),
		Limit:      q.Limit,
		Offset:     q.Offset,
		Terms:      q.Terms,
		Sort:       string(q.Sort),
		TimeFilter: string(q.TimeFilter),
		Degraded:   slices.Clone(q.Degraded),
	}
}

func paramsFor(q parser.Query) tool.Params {
	return tool.Params{
		Query:      q.Text,
		Category:   q.Category,
		Terms:      q.Terms,
		Limit:      q.Limit,
		Offset:     q.Offset,
		Sort:       string(q.Sort),
		TimeFilter: string(q.TimeFilter),
	}
}

// merge appends the reasons in add that dst does not hold yet.
func merge(dst, add []string) []string {
	for _, r := range add {
		if !slices.Contains(dst, r) {
			dst = append(dst, r)
		}
	}
	return dst
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
