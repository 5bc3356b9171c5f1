package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/toolquery/auth"
	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/executor"
	"github.com/jonwraymond/toolquery/parser"
	"github.com/jonwraymond/toolquery/pipeline"
	"github.com/jonwraymond/toolquery/postprocess"
	"github.com/jonwraymond/toolquery/tool"
)

const eventsPayload = `[
	{"title": "Will Trump win 2028?", "volume": 300},
	{"title": "Trump approval above 50%", "volume": 200},
	{"title": "Trump visits Ohio", "volume": 100},
	{"title": "Trump tariff vote", "volume": 50}
]`

type fakeAdapter struct {
	err error
}

func (f fakeAdapter) Descriptor() tool.Descriptor {
	caps := []tool.Category{tool.CategoryPolitics, tool.CategorySports}
	return tool.Descriptor{
		Name:         "get_events",
		Description:  "Prediction market events",
		Capabilities: caps,
		Schema:       tool.QuerySchema(caps...),
		Strategy:     cache.StrategyContentHash,
		TTL:          time.Minute,
		Fallback:     true,
	}
}

func (f fakeAdapter) KeyParts(p tool.Params) tool.KeyParts {
	return tool.KeyParts{Entity: "event", Input: map[string]any{"keyword": string(p.Category)}}
}

func (f fakeAdapter) Fetch(context.Context, tool.Params) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(eventsPayload), nil
}

type fixture struct {
	srv   *Server
	cache *cache.Manager
	reg   *prometheus.Registry
}

func newFixture(t *testing.T, a tool.Adapter, mutate func(*Config)) fixture {
	t.Helper()
	reg := tool.NewRegistry()
	if err := reg.Register(a); err != nil {
		t.Fatal(err)
	}
	reg.Freeze()
	prs, err := parser.New(parser.DefaultVocabulary(), parser.Config{Aliases: reg.Aliases()})
	if err != nil {
		t.Fatal(err)
	}
	mgr := cache.NewManager(cache.Config{Policy: cache.DefaultPolicy()})
	t.Cleanup(func() { _ = mgr.Close() })

	opts := executor.DefaultOptions()
	opts.MaxRetries = 0
	exec, err := executor.New(executor.Config{Cache: mgr, Defaults: &opts})
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(pipeline.Config{Registry: reg, Parser: prs, Executor: exec})
	if err != nil {
		t.Fatal(err)
	}

	promReg := prometheus.NewRegistry()
	cfg := Config{Pipeline: p, Cache: mgr, Gatherer: promReg, Registerer: promReg}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return fixture{srv: srv, cache: mgr, reg: promReg}
}

func (f fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) postprocess.Response {
	t.Helper()
	var resp postprocess.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body, err)
	}
	return resp
}

func TestNew_Requires(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilPipeline) {
		t.Errorf("error = %v, want ErrNilPipeline", err)
	}
	if _, err := New(Config{Pipeline: &pipeline.Pipeline{}}); !errors.Is(err, ErrNilCache) {
		t.Errorf("error = %v, want ErrNilCache", err)
	}
}

func TestQuery(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, nil)

	rec := f.do(t, http.MethodPost, "/query", `{"query": "Show 3 Trump election markets"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := envelope(t, rec)
	if !resp.Success || resp.Count != 3 || resp.QueryInfo.Keyword != "politics" || resp.QueryInfo.Tool != "get_events" {
		t.Errorf("envelope = %+v", resp)
	}

	rec = f.do(t, http.MethodPost, "/query", `{"query": "Show 3 Trump election markets", "limit": 1, "offset": 1}`)
	resp = envelope(t, rec)
	if !resp.QueryInfo.CacheHit || resp.Count != 1 || resp.Results[0].Title != "Trump approval above 50%" {
		t.Errorf("paged envelope = %+v", resp)
	}
}

func TestQuery_BadRequests(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, nil)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"query":`},
		{"unknown field", `{"q": "bitcoin"}`},
		{"empty body", ``},
		{"empty query", `{"query": "   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/query", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			resp := envelope(t, rec)
			if resp.Success || resp.Error != postprocess.CodeBadRequest || resp.Results == nil {
				t.Errorf("envelope = %+v", resp)
			}
		})
	}
}

func TestQuery_BodyLimit(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, func(c *Config) { c.MaxBodyBytes = 16 })
	rec := f.do(t, http.MethodPost, "/query", `{"query": "a very long query that does not fit"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(envelope(t, rec).Message, "exceeds 16 bytes") {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestQuery_UpstreamStatus(t *testing.T) {
	tests := []struct {
		kind tool.ErrorKind
		want int
		code postprocess.Code
	}{
		{tool.KindRateLimited, http.StatusTooManyRequests, postprocess.CodeUpstreamRateLimited},
		{tool.KindTimeout, http.StatusGatewayTimeout, postprocess.CodeUpstreamTimeout},
		{tool.KindAuth, http.StatusBadGateway, postprocess.CodeUpstreamAuth},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			f := newFixture(t, fakeAdapter{err: tool.NewError("get_events", tt.kind, errors.New("no"))}, nil)
			rec := f.do(t, http.MethodPost, "/query", `{"query": "trump"}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if got := envelope(t, rec).Error; got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestTools(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, nil)
	rec := f.do(t, http.MethodGet, "/tools", "")
	var body struct {
		Tools []tool.Listing `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tools) != 1 || body.Tools[0].Name != "get_events" {
		t.Errorf("tools = %+v", body.Tools)
	}
}

func TestCallTool(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, nil)

	rec := f.do(t, http.MethodPost, "/tools/get_events", `{"keyword": "politics", "limit": 2}`)
	resp := envelope(t, rec)
	if rec.Code != http.StatusOK || resp.Count != 2 {
		t.Errorf("status = %d, envelope = %+v", rec.Code, resp)
	}

	rec = f.do(t, http.MethodPost, "/tools/nope", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown tool status = %d", rec.Code)
	}
}

func TestCacheRoutes(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, nil)
	f.do(t, http.MethodPost, "/query", `{"query": "trump"}`)

	var st cache.Stats
	if err := json.Unmarshal(f.do(t, http.MethodGet, "/cache/stats", "").Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Size != 1 {
		t.Errorf("Size = %d, want 1", st.Size)
	}

	rec := f.do(t, http.MethodGet, "/cache/entries", "")
	if !strings.Contains(rec.Body.String(), "get_events::event:politics::") {
		t.Errorf("entries = %s", rec.Body)
	}

	rec = f.do(t, http.MethodDelete, "/cache", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"removed":1}` {
		t.Errorf("DELETE /cache = %d %s", rec.Code, rec.Body)
	}
	if f.cache.Stats().Size != 0 {
		t.Error("cache not cleared")
	}
}

func TestAuth(t *testing.T) {
	store := auth.NewMemoryKeyStore(
		auth.APIKey{ID: "r", Hash: auth.HashKey("reader-key"), Principal: "reader"},
		auth.APIKey{ID: "a", Hash: auth.HashKey("admin-key"), Principal: "ops", Roles: []string{"admin"}},
	)
	f := newFixture(t, fakeAdapter{}, func(c *Config) {
		c.Auth = auth.MiddlewareConfig{Authenticator: auth.NewAPIKeyAuthenticator("", store)}
		c.AdminRole = "admin"
	})

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"no key", http.MethodGet, "/tools", "", http.StatusUnauthorized},
		{"bad key", http.MethodGet, "/tools", "wrong", http.StatusUnauthorized},
		{"reader lists tools", http.MethodGet, "/tools", "reader-key", http.StatusOK},
		{"reader cannot clear", http.MethodDelete, "/cache", "reader-key", http.StatusForbidden},
		{"admin clears", http.MethodDelete, "/cache", "admin-key", http.StatusOK},
		{"health is public", http.MethodGet, "/healthz", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hdr []string
			if tt.key != "" {
				hdr = []string{"X-API-Key", tt.key}
			}
			rec := f.do(t, tt.method, tt.path, "", hdr...)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
			if rec.Code == http.StatusUnauthorized {
				var body errorBody
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "UNAUTHORIZED" {
					t.Errorf("401 body = %s", rec.Body)
				}
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, nil)
	f.do(t, http.MethodPost, "/query", `{"query": "trump"}`)

	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := `toolquery_http_requests_total{code="200",route="/query"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics missing %q:\n%s", want, rec.Body)
	}
}

func TestMetrics_DisabledWithoutGatherer(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, func(c *Config) { c.Gatherer, c.Registerer = nil, nil })
	if rec := f.do(t, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServe_Shutdown(t *testing.T) {
	f := newFixture(t, fakeAdapter{}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
