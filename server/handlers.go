package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jonwraymond/toolquery/auth"
	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/pipeline"
	"github.com/jonwraymond/toolquery/postprocess"
	"github.com/jonwraymond/toolquery/tool"
)

// statusFor maps envelope codes onto HTTP statuses.
var statusFor = map[postprocess.Code]int{
	postprocess.CodeBadRequest:          http.StatusBadRequest,
	postprocess.CodeNoToolAvailable:     http.StatusServiceUnavailable,
	postprocess.CodeUpstreamTimeout:     http.StatusGatewayTimeout,
	postprocess.CodeUpstreamUnavailable: http.StatusBadGateway,
	postprocess.CodeUpstreamRateLimited: http.StatusTooManyRequests,
	postprocess.CodeUpstreamAuth:        http.StatusBadGateway,
	postprocess.CodeInvalidResponse:     http.StatusBadGateway,
	postprocess.CodeExecutionFailed:     http.StatusBadGateway,
	postprocess.CodeInternal:            http.StatusInternalServerError,
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := s.decode(w, r, &req); err != nil {
		s.writeEnvelope(w, badRequest(err))
		return
	}
	s.writeEnvelope(w, s.cfg.Pipeline.Run(r.Context(), req))
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.cfg.Pipeline.Tools()})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var params tool.Params
	if err := s.decode(w, r, &params); err != nil {
		s.writeEnvelope(w, badRequest(err))
		return
	}
	s.writeEnvelope(w, s.cfg.Pipeline.CallTool(r.Context(), r.PathValue("name"), params))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Cache.Stats())
}

func (s *Server) handleCacheEntries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.cfg.Cache.Entries()})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	n := s.cfg.Cache.Clear()
	s.logger.Info(r.Context(), "cache cleared",
		observe.Field{Key: "removed", Value: n},
		observe.Field{Key: "principal", Value: auth.PrincipalFromContext(r.Context())},
	)
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func badRequest(err error) postprocess.Response {
	return postprocess.Failure(postprocess.CodeBadRequest, err.Error(), postprocess.QueryInfo{})
}

func (s *Server) writeEnvelope(w http.ResponseWriter, resp postprocess.Response) {
	status := http.StatusOK
	if !resp.Success {
		if st, ok := statusFor[resp.Error]; ok {
			status = st
		} else {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeAuthError(w http.ResponseWriter, _ *http.Request, status int, err error) {
	code := "UNAUTHORIZED"
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer realm="toolquery"`)
	case http.StatusForbidden:
		code = "FORBIDDEN"
	default:
		code = string(postprocess.CodeInternal)
		err = errors.New("authentication unavailable")
	}
	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}
