// Package mcpserver exposes the query pipeline as an MCP server.
//
// Every registered tool becomes an MCP tool with the tool's own parameter
// schema, plus a "query" tool that runs free text through the whole
// pipeline. Results are the JSON envelope as text content; failed
// envelopes set IsError.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/pipeline"
	"github.com/jonwraymond/toolquery/postprocess"
	"github.com/jonwraymond/toolquery/tool"
)

// QueryToolName is the MCP tool that accepts free text.
const QueryToolName = "query"

var (
	ErrNilPipeline  = errors.New("mcpserver: pipeline is nil")
	ErrNameConflict = errors.New("mcpserver: tool name conflicts with the query tool")
)

// Config configures a Server.
type Config struct {
	Name    string
	Version string

	// Pipeline answers every call. Required.
	Pipeline *pipeline.Pipeline

	Logger observe.Logger
}

// Server is an MCP server over a pipeline.
type Server struct {
	mcp      *mcp.Server
	pipeline *pipeline.Pipeline
	logger   observe.Logger
}

// New creates a Server and registers its tools.
func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, ErrNilPipeline
	}
	if cfg.Name == "" {
		cfg.Name = "toolquery"
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	s := &Server{
		mcp:      mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, &mcp.ServerOptions{HasTools: true}),
		pipeline: cfg.Pipeline,
		logger:   cfg.Logger,
	}

	s.mcp.AddTool(&mcp.Tool{
		Name:        QueryToolName,
		Description: "Answer a natural-language query, e.g. \"top 5 crypto by galaxy score\", using the best matching tool.",
		InputSchema: querySchema(),
	}, s.handleQuery)

	for _, l := range cfg.Pipeline.Tools() {
		if l.Name == QueryToolName {
			return nil, fmt.Errorf("%w: %s", ErrNameConflict, l.Name)
		}
		s.mcp.AddTool(&mcp.Tool{
			Name:        l.Name,
			Description: l.Description,
			InputSchema: l.ParameterSchema,
		}, s.toolHandler(l.Name))
	}
	return s, nil
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves one session over t until it ends or ctx is done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info(ctx, "mcp server running")
	return s.mcp.Run(ctx, t)
}

// RunStdio serves over stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

func querySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query":  {Type: "string", Description: "Free-text query."},
			"tool":   {Type: "string", Description: "Tool to use instead of routing."},
			"limit":  {Type: "integer", Minimum: ptr(float64(tool.MinLimit)), Maximum: ptr(float64(tool.MaxLimit))},
			"offset": {Type: "integer", Minimum: ptr(0.0)},
		},
		Required: []string{"query"},
	}
}

func (s *Server) handleQuery(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in pipeline.Request
	if err := decodeArgs(req.Params.Arguments, &in); err != nil {
		return result(badRequest(err)), nil
	}
	return result(s.pipeline.Run(ctx, in)), nil
}

func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params tool.Params
		if err := decodeArgs(req.Params.Arguments, &params); err != nil {
			return result(badRequest(err)), nil
		}
		return result(s.pipeline.CallTool(ctx, name, params)), nil
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func badRequest(err error) postprocess.Response {
	return postprocess.Failure(postprocess.CodeBadRequest, err.Error(), postprocess.QueryInfo{})
}

func result(resp postprocess.Response) *mcp.CallToolResult {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"success":false,"results":[],"count":0,"error":%q}`, postprocess.CodeInternal))
	}
	return &mcp.CallToolResult{
		IsError: !resp.Success,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

func ptr[T any](v T) *T { return &v }
