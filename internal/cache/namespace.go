package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/happydiving/pricing-engine/internal/metrics"
)

const maxShards = 16

// NamespaceConfig bounds one namespace. Zero TTL or TTI disables that
// expiry; zero MaxEntries means unbounded.
type NamespaceConfig struct {
	MaxEntries int
	TTL        time.Duration
	TTI        time.Duration
}

type entry[V any] struct {
	value      V
	insertedAt int64
	lastAccess atomic.Int64
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]*entry[V]
}

// Namespace is a bounded, expiring map of immutable snapshots, split into
// independently locked shards. Values are returned as stored; callers store
// pointers to data they never mutate afterwards. MaxEntries bounds the whole
// namespace; size counts stored entries plus slots reserved by in-flight
// inserts.
type Namespace[V any] struct {
	name    string
	cfg     NamespaceConfig
	shards  []*shard[V]
	size    atomic.Int64
	evictMu sync.Mutex
	now     func() time.Time
}

// NewNamespace builds an empty namespace. name labels its metrics.
func NewNamespace[V any](name string, cfg NamespaceConfig) *Namespace[V] {
	count := maxShards
	if cfg.MaxEntries > 0 {
		count = cfg.MaxEntries / 32
		if count > maxShards {
			count = maxShards
		}
		if count < 1 {
			count = 1
		}
	}

	n := &Namespace[V]{
		name:   name,
		cfg:    cfg,
		shards: make([]*shard[V], count),
		now:    time.Now,
	}
	for i := range n.shards {
		n.shards[i] = &shard[V]{items: make(map[string]*entry[V])}
	}
	return n
}

// Name returns the namespace label.
func (n *Namespace[V]) Name() string { return n.name }

// Get returns the live value for key. Expired entries are never returned
// and are dropped on sight.
func (n *Namespace[V]) Get(key string) (V, bool) {
	var zero V
	s := n.shardFor(key)
	now := n.now().UnixNano()

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		metrics.IncCacheLookup(n.name, false)
		return zero, false
	}
	if n.expired(e, now) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur == e {
			delete(s.items, key)
			n.size.Add(-1)
		}
		s.mu.Unlock()
		metrics.IncCacheLookup(n.name, false)
		return zero, false
	}

	e.lastAccess.Store(now)
	metrics.IncCacheLookup(n.name, true)
	return e.value, true
}

// Insert stores value under key, replacing any previous entry and
// restarting both expiry clocks. When the namespace is full, expired
// entries go first, then the least recently accessed entry of any shard.
func (n *Namespace[V]) Insert(key string, value V) {
	s := n.shardFor(key)
	now := n.now().UnixNano()

	e := &entry[V]{value: value, insertedAt: now}
	e.lastAccess.Store(now)

	s.mu.Lock()
	if _, exists := s.items[key]; exists {
		s.items[key] = e
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	n.reserve(now)

	s.mu.Lock()
	if _, exists := s.items[key]; exists {
		n.size.Add(-1)
	}
	s.items[key] = e
	s.mu.Unlock()
}

// reserve claims one slot, evicting until one is free.
func (n *Namespace[V]) reserve(now int64) {
	limit := int64(n.cfg.MaxEntries)
	if limit <= 0 {
		n.size.Add(1)
		return
	}
	for {
		cur := n.size.Load()
		if cur < limit {
			if n.size.CompareAndSwap(cur, cur+1) {
				return
			}
			continue
		}

		n.evictMu.Lock()
		if n.size.Load() >= limit && n.cleanup(now) == 0 {
			n.evictOldest()
		}
		n.evictMu.Unlock()
	}
}

// Invalidate removes key.
func (n *Namespace[V]) Invalidate(key string) {
	s := n.shardFor(key)
	s.mu.Lock()
	if _, ok := s.items[key]; ok {
		delete(s.items, key)
		n.size.Add(-1)
	}
	s.mu.Unlock()
}

// InvalidateAll removes every entry.
func (n *Namespace[V]) InvalidateAll() {
	for _, s := range n.shards {
		s.mu.Lock()
		n.size.Add(-int64(len(s.items)))
		s.items = make(map[string]*entry[V])
		s.mu.Unlock()
	}
}

// Len counts live entries.
func (n *Namespace[V]) Len() int {
	now := n.now().UnixNano()
	total := 0
	for _, s := range n.shards {
		s.mu.RLock()
		for _, e := range s.items {
			if !n.expired(e, now) {
				total++
			}
		}
		s.mu.RUnlock()
	}
	return total
}

// Cleanup drops expired entries and reports how many were removed.
func (n *Namespace[V]) Cleanup() int {
	return n.cleanup(n.now().UnixNano())
}

func (n *Namespace[V]) cleanup(now int64) int {
	removed := 0
	for _, s := range n.shards {
		s.mu.Lock()
		removed += n.purgeLocked(s, now)
		s.mu.Unlock()
	}
	return removed
}

// StartCleaner periodically removes expired entries until stop is closed.
func (n *Namespace[V]) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.Cleanup()
		case <-stop:
			return
		}
	}
}

func (n *Namespace[V]) expired(e *entry[V], now int64) bool {
	if n.cfg.TTL > 0 && now-e.insertedAt >= int64(n.cfg.TTL) {
		return true
	}
	if n.cfg.TTI > 0 && now-e.lastAccess.Load() >= int64(n.cfg.TTI) {
		return true
	}
	return false
}

func (n *Namespace[V]) purgeLocked(s *shard[V], now int64) int {
	removed := 0
	for k, e := range s.items {
		if n.expired(e, now) {
			delete(s.items, k)
			n.size.Add(-1)
			removed++
		}
	}
	return removed
}

// evictOldest drops the least recently accessed entry across all shards.
func (n *Namespace[V]) evictOldest() {
	var (
		victimShard *shard[V]
		victimKey   string
		victim      *entry[V]
		oldest      int64
	)
	for _, s := range n.shards {
		s.mu.RLock()
		for k, e := range s.items {
			if at := e.lastAccess.Load(); victim == nil || at < oldest {
				victimShard, victimKey, victim, oldest = s, k, e, at
			}
		}
		s.mu.RUnlock()
	}
	if victim == nil {
		return
	}

	victimShard.mu.Lock()
	if cur, ok := victimShard.items[victimKey]; ok && cur == victim {
		delete(victimShard.items, victimKey)
		n.size.Add(-1)
		metrics.IncCacheEviction(n.name)
	}
	victimShard.mu.Unlock()
}

func (n *Namespace[V]) shardFor(key string) *shard[V] {
	if len(n.shards) == 1 {
		return n.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return n.shards[h.Sum32()%uint32(len(n.shards))]
}
