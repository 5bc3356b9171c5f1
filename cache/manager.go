package cache

import (
	"bytes"
	"container/list"
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is the entry bound used when Config.Capacity is unset.
const DefaultCapacity = 1000

// Config configures a Manager.
type Config struct {
	// Capacity bounds the number of entries. Least recently used entries are
	// evicted once it is exceeded. Default: 1000.
	Capacity int

	// Policy supplies the default and maximum TTL.
	Policy Policy

	// SweepInterval enables a background sweep of expired entries.
	// Zero disables it; expiry is then purely lazy.
	SweepInterval time.Duration

	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// Manager is the in-memory TTL store shared by all pipeline invocations.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front is most recently used
	closed  bool

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	stop chan struct{}
	done chan struct{}
}

type entry struct {
	key       string
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// NewManager creates a Manager and starts its sweeper if configured.
// Callers own the Manager and must Close it at shutdown.
func NewManager(cfg Config) *Manager {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	m := &Manager{
		cfg:     cfg,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
	if cfg.SweepInterval > 0 {
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.sweep(cfg.SweepInterval)
	}
	return m
}

// Get returns a copy of the value stored under key. An entry is expired once
// the clock reaches its expiry; expired entries are removed and reported as a miss.
func (m *Manager) Get(_ context.Context, key string) ([]byte, bool) {
	now := m.cfg.Clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false
	}
	el, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if !now.Before(e.expiresAt) {
		m.removeLocked(el)
		m.expirations++
		m.evictions++
		m.misses++
		return nil, false
	}

	m.lru.MoveToFront(el)
	m.hits++
	return bytes.Clone(e.value), true
}

// Set stores a copy of value under key, replacing any previous entry.
func (m *Manager) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	ttl = m.cfg.Policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		return nil
	}

	now := m.cfg.Clock()
	e := &entry{
		key:       key,
		value:     bytes.Clone(value),
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if el, ok := m.entries[key]; ok {
		el.Value = e
		m.lru.MoveToFront(el)
		return nil
	}

	m.entries[key] = m.lru.PushFront(e)
	for m.lru.Len() > m.cfg.Capacity {
		m.removeLocked(m.lru.Back())
		m.evictions++
	}
	return nil
}

// Delete removes key. Idempotent.
func (m *Manager) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.removeLocked(el)
	}
	return nil
}

// Clear drops every entry. Counters are kept.
func (m *Manager) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.lru.Len()
	m.entries = make(map[string]*list.Element)
	m.lru.Init()
	return n
}

// Cleanup removes expired entries and returns how many were removed.
func (m *Manager) Cleanup() int {
	now := m.cfg.Clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for el := m.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expiresAt) {
			m.removeLocked(el)
			m.expirations++
			m.evictions++
			removed++
		}
		el = prev
	}
	return removed
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Hits:        m.hits,
		Misses:      m.misses,
		Evictions:   m.evictions,
		Expirations: m.expirations,
		Size:        m.lru.Len(),
		Capacity:    m.cfg.Capacity,
	}
	if total := s.Requests(); total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Entries lists stored entries sorted by key.
func (m *Manager) Entries() []EntryInfo {
	now := m.cfg.Clock()

	m.mu.Lock()
	out := make([]EntryInfo, 0, m.lru.Len())
	for el := m.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		out = append(out, EntryInfo{
			Key:       e.key,
			CreatedAt: e.createdAt,
			ExpiresAt: e.expiresAt,
			Size:      len(e.value),
			Expired:   !now.Before(e.expiresAt),
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close stops the sweeper and drops all entries. Subsequent Sets fail with
// ErrClosed and Gets miss. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.entries = make(map[string]*list.Element)
	m.lru.Init()
	m.mu.Unlock()

	if m.stop != nil {
		close(m.stop)
		<-m.done
	}
	return nil
}

func (m *Manager) removeLocked(el *list.Element) {
	m.lru.Remove(el)
	delete(m.entries, el.Value.(*entry).key)
}

func (m *Manager) sweep(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

var _ Cache = (*Manager)(nil)
