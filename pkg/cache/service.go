// Package cache is the shared TTL+LRU store for pipeline artifacts:
// embeddings, plans, result sets and rendered responses. One Service instance
// is threaded through the dependency container; there is no package-level
// state, so tests get per-tenant isolation for free.
package cache

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"soul-journal-be/internal/pkg/logger"
)

// Logical namespaces. TTL ordering: embeddings live longest, responses shortest.
const (
	NamespaceEmbedding = "embedding"
	NamespacePlan      = "plan"
	NamespaceResult    = "result"
	NamespaceResponse  = "response"
)

// Config tunes one namespace.
type Config struct {
	Capacity      int
	TTL           time.Duration
	MaxEntrySize  int     // bytes estimate; 0 = no per-entry bound
	EvictFraction float64 // share of entries removed per eviction pass
	HitWeight     float64
	AgeWeight     float64 // per second of age
}

// DefaultConfigs returns the production namespace settings.
func DefaultConfigs() map[string]Config {
	return map[string]Config{
		NamespaceEmbedding: {Capacity: 2000, TTL: 24 * time.Hour, MaxEntrySize: 64 * 1024, EvictFraction: 0.25, HitWeight: 1.0, AgeWeight: 0.001},
		NamespacePlan:      {Capacity: 1000, TTL: time.Hour, MaxEntrySize: 32 * 1024, EvictFraction: 0.25, HitWeight: 1.0, AgeWeight: 0.001},
		NamespaceResult:    {Capacity: 500, TTL: 15 * time.Minute, MaxEntrySize: 256 * 1024, EvictFraction: 0.25, HitWeight: 1.0, AgeWeight: 0.001},
		NamespaceResponse:  {Capacity: 500, TTL: 5 * time.Minute, MaxEntrySize: 64 * 1024, EvictFraction: 0.25, HitWeight: 1.0, AgeWeight: 0.001},
	}
}

type entry struct {
	value        interface{}
	createdAt    time.Time
	expiresAt    time.Time
	size         int
	accessCount  int64
	lastAccessed time.Time
}

type namespace struct {
	mu      sync.RWMutex
	cfg     Config
	entries map[string]*entry
}

type Service struct {
	spaces map[string]*namespace
	logger logger.ILogger
	now    func() time.Time // overridable in tests
}

func New(log logger.ILogger) *Service {
	return NewWithConfigs(DefaultConfigs(), log)
}

func NewWithConfigs(cfgs map[string]Config, log logger.ILogger) *Service {
	spaces := make(map[string]*namespace, len(cfgs))
	for name, cfg := range cfgs {
		if cfg.EvictFraction <= 0 || cfg.EvictFraction >= 1 {
			cfg.EvictFraction = 0.25
		}
		spaces[name] = &namespace{cfg: cfg, entries: make(map[string]*entry)}
	}
	return &Service{spaces: spaces, logger: log, now: time.Now}
}

// Get returns the live value for key, bumping its access bookkeeping.
// Expired entries are treated as misses and dropped lazily.
func (s *Service) Get(ns, key string) (interface{}, bool) {
	space, ok := s.spaces[ns]
	if !ok {
		return nil, false
	}

	now := s.now()

	space.mu.RLock()
	e, found := space.entries[key]
	space.mu.RUnlock()

	if !found {
		return nil, false
	}
	if now.After(e.expiresAt) {
		space.mu.Lock()
		// Re-check under the write lock; another writer may have replaced it.
		if cur, still := space.entries[key]; still && now.After(cur.expiresAt) {
			delete(space.entries, key)
		}
		space.mu.Unlock()
		return nil, false
	}

	space.mu.Lock()
	e.accessCount++
	e.lastAccessed = now
	space.mu.Unlock()

	return e.value, true
}

// Set upserts the key with last-writer-wins semantics. An entry larger than
// the namespace bound is rejected outright rather than evicting to make room,
// which keeps worst-case memory deterministic. Returns false on rejection.
func (s *Service) Set(ns, key string, value interface{}, size int) bool {
	space, ok := s.spaces[ns]
	if !ok {
		return false
	}

	if space.cfg.MaxEntrySize > 0 && size > space.cfg.MaxEntrySize {
		s.logger.Warn("cache", "oversized entry rejected", map[string]interface{}{
			"namespace": ns, "size": size, "max": space.cfg.MaxEntrySize,
		})
		return false
	}

	now := s.now()

	space.mu.Lock()
	defer space.mu.Unlock()

	space.entries[key] = &entry{
		value:        value,
		createdAt:    now,
		expiresAt:    now.Add(space.cfg.TTL),
		size:         size,
		lastAccessed: now,
	}

	if space.cfg.Capacity > 0 && len(space.entries) > space.cfg.Capacity {
		s.evictLocked(ns, space, now)
	}
	return true
}

// GetOrCompute is the read-through path: a miss triggers compute, then a
// write-back. compute runs outside any lock; concurrent misses for the same
// key may race, which is fine because values are pure functions of the key
// and writes are last-writer-wins.
func (s *Service) GetOrCompute(ctx context.Context, ns, key string, compute func(context.Context) (interface{}, int, error)) (interface{}, error) {
	if v, ok := s.Get(ns, key); ok {
		return v, nil
	}

	v, size, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	s.Set(ns, key, v, size)
	return v, nil
}

// Delete removes a single key. Used when an upstream invalidates an artifact.
func (s *Service) Delete(ns, key string) {
	space, ok := s.spaces[ns]
	if !ok {
		return
	}
	space.mu.Lock()
	delete(space.entries, key)
	space.mu.Unlock()
}

// Flush empties a whole namespace. Used when a corpus change invalidates
// every derived artifact at once.
func (s *Service) Flush(ns string) {
	space, ok := s.spaces[ns]
	if !ok {
		return
	}
	space.mu.Lock()
	space.entries = make(map[string]*entry)
	space.mu.Unlock()
}

// Len reports current entry count for a namespace.
func (s *Service) Len(ns string) int {
	space, ok := s.spaces[ns]
	if !ok {
		return 0
	}
	space.mu.RLock()
	defer space.mu.RUnlock()
	return len(space.entries)
}

// evictLocked removes expired entries, then the lowest-scored batch in a
// single pass. Never evicts one entry at a time under pressure.
func (s *Service) evictLocked(ns string, space *namespace, now time.Time) {
	for key, e := range space.entries {
		if now.After(e.expiresAt) {
			delete(space.entries, key)
		}
	}
	if len(space.entries) <= space.cfg.Capacity {
		return
	}

	type scored struct {
		key   string
		score float64
	}
	ranked := make([]scored, 0, len(space.entries))
	for key, e := range space.entries {
		age := now.Sub(e.createdAt).Seconds()
		score := float64(e.accessCount)*space.cfg.HitWeight - age*space.cfg.AgeWeight
		ranked = append(ranked, scored{key: key, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

	batch := int(math.Ceil(space.cfg.EvictFraction * float64(len(ranked))))
	if batch < 1 {
		batch = 1
	}
	for i := 0; i < batch && i < len(ranked); i++ {
		delete(space.entries, ranked[i].key)
	}

	s.logger.Debug("cache", "batch eviction", map[string]interface{}{
		"namespace": ns, "evicted": batch, "remaining": len(space.entries),
	})
}
