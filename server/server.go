// Package server exposes the query pipeline over HTTP.
//
// Routes:
//
//	POST   /query         run a free-text query
//	GET    /tools         list tool schemas
//	POST   /tools/{name}  call one tool with explicit parameters
//	GET    /cache/stats   cache statistics
//	GET    /cache/entries cached keys and expiries (admin)
//	DELETE /cache         clear the cache (admin)
//	GET    /healthz, /readyz, /health
//	GET    /metrics
//
// Every query route answers with the pipeline envelope, including failures.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/toolquery/auth"
	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/health"
	"github.com/jonwraymond/toolquery/observe"
	"github.com/jonwraymond/toolquery/pipeline"
)

// DefaultMaxBodyBytes bounds request bodies when Config.MaxBodyBytes is unset.
const DefaultMaxBodyBytes = 64 << 10

var (
	ErrNilPipeline = errors.New("server: pipeline is nil")
	ErrNilCache    = errors.New("server: cache is nil")
)

var publicPaths = []string{"/healthz", "/readyz", "/health", "/metrics"}

// CacheAdmin is the cache surface the server exposes. *cache.Manager
// implements it.
type CacheAdmin interface {
	Stats() cache.Stats
	Entries() []cache.EntryInfo
	Clear() int
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Pipeline answers queries. Required.
	Pipeline *pipeline.Pipeline

	// Cache backs the cache routes. Required.
	Cache CacheAdmin

	// Health backs the health routes. Nil serves an empty aggregator.
	Health *health.Aggregator

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	// Registerer receives the server's HTTP metrics. Nil records none.
	Registerer prometheus.Registerer

	// Auth guards every route except health and metrics.
	Auth auth.MiddlewareConfig

	// AdminRole is required for cache mutation and listing. Empty leaves
	// those routes open to any authenticated caller.
	AdminRole string

	// MaxBodyBytes bounds request bodies. Default: DefaultMaxBodyBytes.
	MaxBodyBytes int64

	Logger observe.Logger
}

// Server serves the HTTP API.
type Server struct {
	cfg     Config
	handler http.Handler
	logger  observe.Logger
	metrics *httpMetrics
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, ErrNilPipeline
	}
	if cfg.Cache == nil {
		return nil, ErrNilCache
	}
	if cfg.Health == nil {
		cfg.Health = health.NewAggregator(health.AggregatorConfig{})
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Auth.OnError == nil {
		cfg.Auth.OnError = writeAuthError
	}
	cfg.Auth.PublicPaths = slices.Concat(cfg.Auth.PublicPaths, publicPaths)

	metrics, err := newHTTPMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, logger: cfg.Logger, metrics: metrics}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	admin := func(h http.HandlerFunc) http.Handler {
		if s.cfg.AdminRole == "" {
			return h
		}
		return auth.RequireRole(s.cfg.AdminRole, writeAuthError)(h)
	}

	mux.Handle("POST /query", s.instrument("/query", http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /tools", s.instrument("/tools", http.HandlerFunc(s.handleTools)))
	mux.Handle("POST /tools/{name}", s.instrument("/tools/{name}", http.HandlerFunc(s.handleCallTool)))
	mux.Handle("GET /cache/stats", s.instrument("/cache/stats", http.HandlerFunc(s.handleCacheStats)))
	mux.Handle("GET /cache/entries", s.instrument("/cache/entries", admin(s.handleCacheEntries)))
	mux.Handle("DELETE /cache", s.instrument("/cache", admin(s.handleCacheClear)))
	health.RegisterHandlers(mux, s.cfg.Health)
	if s.cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return auth.Middleware(s.cfg.Auth)(mux)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on cfg.Addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", observe.Field{Key: "addr", Value: ln.Addr().String()})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.logger.Error(shutCtx, "http server shutdown", observe.Field{Key: "error", Value: err.Error()})
			return err
		}
		s.logger.Info(shutCtx, "http server stopped")
		return nil
	}
}
