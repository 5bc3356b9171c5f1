package postprocess

import "github.com/jonwraymond/toolquery/tool"

// Code is a stable error code carried in a failed envelope.
type Code string

// Envelope error codes.
const (
	CodeNoToolAvailable     Code = "NO_TOOL_AVAILABLE"
	CodeInvalidResponse     Code = "INVALID_RESPONSE"
	CodeExecutionFailed     Code = "EXECUTION_FAILED"
	CodeUpstreamTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamRateLimited Code = "UPSTREAM_RATE_LIMITED"
	CodeUpstreamAuth        Code = "UPSTREAM_AUTH"
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeInternal            Code = "INTERNAL"
)

// CodeForKind maps an adapter failure onto its envelope code.
func CodeForKind(k tool.ErrorKind) Code {
	switch k {
	case tool.KindTimeout:
		return CodeUpstreamTimeout
	case tool.KindNetwork, tool.KindUnavailable:
		return CodeUpstreamUnavailable
	case tool.KindRateLimited:
		return CodeUpstreamRateLimited
	case tool.KindAuth, tool.KindSubscription:
		return CodeUpstreamAuth
	case tool.KindBadRequest:
		return CodeBadRequest
	case tool.KindMalformed:
		return CodeInvalidResponse
	default:
		return CodeExecutionFailed
	}
}

// QueryInfo describes how a query was interpreted and served.
type QueryInfo struct {
	RequestID  string   `json:"requestId,omitempty"`
	Query      string   `json:"query,omitempty"`
	Keyword    string   `json:"keyword"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
	Terms      []string `json:"terms,omitempty"`
	Sort       string   `json:"sort,omitempty"`
	TimeFilter string   `json:"timeFilter,omitempty"`

	Tool       string  `json:"tool,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`

	CacheHit   bool    `json:"cacheHit"`
	Shared     bool    `json:"shared,omitempty"`
	RetryCount int     `json:"retryCount"`
	ElapsedMs  float64 `json:"elapsedMs"`

	// Total is the number of valid, filtered items before offset and limit.
	Total int `json:"total"`

	// Dropped is the number of raw items that failed validation.
	Dropped int `json:"dropped,omitempty"`

	Degraded []string `json:"degraded,omitempty"`
}

// Response is the envelope every pipeline invocation returns.
type Response struct {
	Success   bool      `json:"success"`
	Results   []Item    `json:"results"`
	Count     int       `json:"count"`
	Error     Code      `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	QueryInfo QueryInfo `json:"queryInfo"`
}

// Failure builds a failed envelope. Results is always an empty list.
func Failure(code Code, message string, info QueryInfo) Response {
	return Response{
		Success:   false,
		Results:   []Item{},
		Error:     code,
		Message:   message,
		QueryInfo: info,
	}
}
