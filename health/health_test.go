package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/resilience"
	"github.com/jonwraymond/toolquery/tool"
)

func static(name string, r Result) Checker {
	return CheckerFunc(name, func(context.Context) Result { return r })
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.results); got != tt.want {
				t.Errorf("Overall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_RegisterOrder(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(static("b", Healthy("")))
	agg.Register(static("a", Healthy("")))
	agg.Register(static("b", Degraded("")))
	agg.Register(static("c", Healthy("")))
	agg.Unregister("a")

	if diff := cmp.Diff([]string{"b", "c"}, agg.Names()); diff != "" {
		t.Errorf("Names() (-want +got):\n%s", diff)
	}
	r, err := agg.Check(context.Background(), "b")
	if err != nil || r.Status != StatusDegraded {
		t.Errorf("Check(b) = %v, %v; want the replacement checker", r.Status, err)
	}
	if _, err := agg.Check(context.Background(), "a"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(a) error = %v", err)
	}
}

func TestAggregator_CheckAllRunsConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	slow := func(name string) Checker {
		return CheckerFunc(name, func(context.Context) Result {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return Healthy("")
		})
	}
	agg := NewAggregator(AggregatorConfig{Concurrency: 2})
	for _, n := range []string{"a", "b", "c", "d"} {
		agg.Register(slow(n))
	}

	results := agg.CheckAll(context.Background())
	if len(results) != 4 {
		t.Fatalf("len(results) = %d", len(results))
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	for name, r := range results {
		if r.Duration <= 0 || r.Timestamp.IsZero() {
			t.Errorf("%s: Duration = %v, Timestamp = %v", name, r.Duration, r.Timestamp)
		}
	}
}

func TestAggregator_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(CheckerFunc("stuck", func(context.Context) Result {
		<-release
		return Healthy("")
	}))
	agg.Register(static("fine", Healthy("")))

	results := agg.CheckAll(context.Background())
	if r := results["stuck"]; r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("stuck = %+v", r)
	}
	if results["fine"].Status != StatusHealthy {
		t.Errorf("fine = %+v", results["fine"])
	}
}

type fakeStats cache.Stats

func (f fakeStats) Stats() cache.Stats { return cache.Stats(f) }

func TestCacheChecker(t *testing.T) {
	tests := []struct {
		name  string
		stats cache.Stats
		ratio float64
		want  Status
	}{
		{"empty", cache.Stats{Capacity: 100}, 0, StatusHealthy},
		{"below ratio", cache.Stats{Size: 89, Capacity: 100}, 0, StatusHealthy},
		{"at default ratio", cache.Stats{Size: 90, Capacity: 100}, 0, StatusDegraded},
		{"custom ratio", cache.Stats{Size: 50, Capacity: 100}, 0.5, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCacheChecker(fakeStats(tt.stats), tt.ratio).Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", r.Status, tt.want, r.Message)
			}
			if r.Details["capacity"] != tt.stats.Capacity {
				t.Errorf("Details = %v", r.Details)
			}
		})
	}
}

func TestCacheChecker_RealManager(t *testing.T) {
	m := cache.NewManager(cache.Config{Capacity: 2, Policy: cache.DefaultPolicy()})
	defer m.Close()
	c := NewCacheChecker(m, 1)
	if r := c.Check(context.Background()); r.Status != StatusHealthy {
		t.Fatalf("empty cache = %v", r.Status)
	}
	_ = m.Set(context.Background(), "a", []byte("1"), 0)
	_ = m.Set(context.Background(), "b", []byte("2"), 0)
	if r := c.Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("full cache = %v", r.Status)
	}
}

type fakeAdapter struct {
	name string
	err  error
}

func (f fakeAdapter) Descriptor() tool.Descriptor {
	return tool.Descriptor{Name: f.name, Capabilities: []tool.Category{tool.CategoryCrypto}}
}
func (f fakeAdapter) KeyParts(tool.Params) tool.KeyParts { return tool.KeyParts{} }
func (f fakeAdapter) Fetch(context.Context, tool.Params) (json.RawMessage, error) {
	return json.RawMessage(`[]`), f.err
}

type fakeCatalog []tool.Adapter

func (c fakeCatalog) Len() int                 { return len(c) }
func (c fakeCatalog) Adapters() []tool.Adapter { return c }

type fakeHealth struct {
	open map[string]bool
}

func (p fakeHealth) HealthCheck(ctx context.Context, a tool.Adapter) error {
	_, err := a.Fetch(ctx, tool.Params{})
	return err
}

func (p fakeHealth) BreakerState(name string) resilience.State {
	if p.open[name] {
		return resilience.StateOpen
	}
	return resilience.StateClosed
}

func TestRegistryChecker(t *testing.T) {
	if r := NewRegistryChecker(fakeCatalog{}).Check(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("empty registry = %v", r.Status)
	}
	r := NewRegistryChecker(fakeCatalog{fakeAdapter{name: "get_events"}}).Check(context.Background())
	if r.Status != StatusHealthy {
		t.Errorf("registry = %v", r.Status)
	}
	if diff := cmp.Diff([]string{"get_events"}, r.Details["tools"]); diff != "" {
		t.Errorf("tools (-want +got):\n%s", diff)
	}
}

func TestAdapterChecker(t *testing.T) {
	down := errors.New("upstream down")
	tests := []struct {
		name    string
		adapter fakeAdapter
		open    bool
		want    Status
		wantErr error
	}{
		{"check ok", fakeAdapter{name: "a"}, false, StatusHealthy, nil},
		{"check fails", fakeAdapter{name: "a", err: down}, false, StatusDegraded, down},
		{"circuit open", fakeAdapter{name: "a"}, true, StatusDegraded, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAdapterChecker(fakeHealth{open: map[string]bool{"a": tt.open}}, tt.adapter)
			if c.Name() != "tool:a" {
				t.Errorf("Name() = %q", c.Name())
			}
			r := c.Check(context.Background())
			if r.Status != tt.want || !errors.Is(r.Error, tt.wantErr) {
				t.Errorf("Check() = %v, %v; want %v, %v", r.Status, r.Error, tt.want, tt.wantErr)
			}
		})
	}
}

func TestAdapterCheckers(t *testing.T) {
	cs := AdapterCheckers(fakeHealth{}, fakeCatalog{fakeAdapter{name: "x"}, fakeAdapter{name: "y"}})
	var names []string
	for _, c := range cs {
		names = append(names, c.Name())
	}
	if diff := cmp.Diff([]string{"tool:x", "tool:y"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Checker
		path       string
		wantCode   int
		wantStatus string
	}{
		{"liveness ignores checks", []Checker{static("x", Unhealthy("", nil))}, "/healthz", 200, ""},
		{"ready", []Checker{static("x", Healthy(""))}, "/readyz", 200, "healthy"},
		{"ready when degraded", []Checker{static("x", Degraded(""))}, "/readyz", 200, "degraded"},
		{"not ready", []Checker{static("x", Unhealthy("", nil))}, "/readyz", 503, "unhealthy"},
		{"detailed", []Checker{static("x", Healthy("")), static("y", Unhealthy("bad", errors.New("boom")))}, "/health", 503, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(AggregatorConfig{})
			for _, c := range tt.checks {
				agg.Register(c)
			}
			mux := http.NewServeMux()
			RegisterHandlers(mux, agg)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantStatus == "" {
				return
			}
			var body Response
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body %q: %v", rec.Body, err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestDetailedHandler_Body(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(static("y", Unhealthy("bad", errors.New("boom")).WithDetails(map[string]any{"k": "v"})))

	rec := httptest.NewRecorder()
	DetailedHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	got := body.Checks["y"]
	got.Duration = ""
	want := CheckResponse{Status: "unhealthy", Message: "bad", Details: map[string]any{"k": "v"}, Error: "boom"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("check (-want +got):\n%s", diff)
	}
}
