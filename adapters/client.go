package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/toolquery/tool"
)

// DefaultHTTPTimeout bounds a request when no client is supplied.
const DefaultHTTPTimeout = 30 * time.Second

// MaxBodySize caps how much of a response body is read.
const MaxBodySize = 8 << 20

// UserAgent is sent with every upstream request.
const UserAgent = "toolquery/1"

// Client performs JSON GET requests for one tool and classifies failures
// into tool.Error kinds.
type Client struct {
	tool string
	http *http.Client
}

// NewClient creates a Client for toolName. A nil hc uses a client with
// DefaultHTTPTimeout.
func NewClient(toolName string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{tool: toolName, http: hc}
}

// GetJSON issues GET base?query with header and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, base string, query url.Values, header http.Header, out any) error {
	u, err := url.Parse(base)
	if err != nil {
		return tool.NewError(c.tool, tool.KindBadRequest, fmt.Errorf("parse url: %w", err))
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return tool.NewError(c.tool, tool.KindBadRequest, fmt.Errorf("create request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return tool.NewError(c.tool, tool.KindOf(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return tool.NewError(c.tool, tool.KindOf(err), fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StatusError(c.tool, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return tool.NewError(c.tool, tool.KindMalformed, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// ClassifyStatus maps an HTTP status onto an error kind.
func ClassifyStatus(status int) tool.ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return tool.KindAuth
	case status == http.StatusPaymentRequired:
		return tool.KindSubscription
	case status == http.StatusTooManyRequests:
		return tool.KindRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return tool.KindTimeout
	case status >= 500:
		return tool.KindUnavailable
	case status >= 400:
		return tool.KindBadRequest
	default:
		return tool.KindUnknown
	}
}

// StatusError builds the classified error for a non-2xx response. A short
// prefix of the body is kept for diagnostics.
func StatusError(toolName string, status int, body []byte) *tool.Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &tool.Error{
		Tool:   toolName,
		Kind:   ClassifyStatus(status),
		Status: status,
		Err:    errors.New(msg),
	}
}
