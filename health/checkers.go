package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/toolquery/cache"
	"github.com/jonwraymond/toolquery/resilience"
	"github.com/jonwraymond/toolquery/tool"
)

// DefaultCacheWarnRatio is the fill ratio above which the cache reports
// degraded.
const DefaultCacheWarnRatio = 0.9

// StatsSource reports cache statistics. *cache.Manager implements it.
type StatsSource interface {
	Stats() cache.Stats
}

// CacheChecker reports the response cache as degraded once it is nearly
// full, since further writes evict live entries.
type CacheChecker struct {
	src       StatsSource
	warnRatio float64
}

// NewCacheChecker creates a CacheChecker. A warnRatio outside (0, 1] uses
// DefaultCacheWarnRatio.
func NewCacheChecker(src StatsSource, warnRatio float64) *CacheChecker {
	if warnRatio <= 0 || warnRatio > 1 {
		warnRatio = DefaultCacheWarnRatio
	}
	return &CacheChecker{src: src, warnRatio: warnRatio}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(context.Context) Result {
	st := c.src.Stats()
	details := map[string]any{
		"size":      st.Size,
		"capacity":  st.Capacity,
		"hits":      st.Hits,
		"misses":    st.Misses,
		"evictions": st.Evictions,
		"hit_rate":  st.HitRate,
	}
	if st.Capacity > 0 && float64(st.Size) >= c.warnRatio*float64(st.Capacity) {
		return Degraded(fmt.Sprintf("cache %d/%d full", st.Size, st.Capacity)).WithDetails(details)
	}
	return Healthy("ok").WithDetails(details)
}

// Catalog lists registered tools. *tool.Registry implements it.
type Catalog interface {
	Len() int
	Adapters() []tool.Adapter
}

// RegistryChecker reports unhealthy when no tool is registered, since
// every query would fail with NO_TOOL_AVAILABLE.
type RegistryChecker struct {
	catalog Catalog
}

func NewRegistryChecker(catalog Catalog) *RegistryChecker {
	return &RegistryChecker{catalog: catalog}
}

func (c *RegistryChecker) Name() string { return "registry" }

func (c *RegistryChecker) Check(context.Context) Result {
	n := c.catalog.Len()
	if n == 0 {
		return Unhealthy("no tools registered", nil)
	}
	names := make([]string, 0, n)
	for _, a := range c.catalog.Adapters() {
		names = append(names, a.Descriptor().Name)
	}
	return Healthy(fmt.Sprintf("%d tools", n)).WithDetails(map[string]any{"tools": names})
}

// AdapterHealth checks adapters. *executor.Executor implements it.
type AdapterHealth interface {
	HealthCheck(ctx context.Context, a tool.Adapter) error
	BreakerState(name string) resilience.State
}

// AdapterChecker checks one provider adapter. A failed check or an open
// circuit is degraded, not unhealthy: queries still reach fallback tools.
type AdapterChecker struct {
	exec    AdapterHealth
	adapter tool.Adapter
}

func NewAdapterChecker(p AdapterHealth, a tool.Adapter) *AdapterChecker {
	return &AdapterChecker{exec: p, adapter: a}
}

func (c *AdapterChecker) Name() string { return "tool:" + c.adapter.Descriptor().Name }

func (c *AdapterChecker) Check(ctx context.Context) Result {
	name := c.adapter.Descriptor().Name
	state := c.exec.BreakerState(name)
	details := map[string]any{"tool": name, "breaker": state.String()}
	if state == resilience.StateOpen {
		return Degraded("circuit open").WithDetails(details)
	}
	if err := c.exec.HealthCheck(ctx, c.adapter); err != nil {
		r := Degraded("health check failed").WithDetails(details)
		r.Error = err
		return r
	}
	return Healthy("ok").WithDetails(details)
}

// AdapterCheckers returns one AdapterChecker per adapter in catalog.
func AdapterCheckers(p AdapterHealth, catalog Catalog) []Checker {
	adapters := catalog.Adapters()
	out := make([]Checker, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, NewAdapterChecker(p, a))
	}
	return out
}
