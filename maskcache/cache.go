package maskcache

import (
	"container/list"
	"errors"
	"hash/fnv"
	"sort"
	"sync"
)

// ErrCacheFull reports a cache at capacity. Cache never returns it:
// CacheConfig has no option to turn eviction off, so Insert and
// GetOrCompute always evict least-recently-used entries instead.
var ErrCacheFull = errors.New("maskcache: cache is full")

// StateKey identifies a matcher state (a stack-tops signature) for
// lookup in the Cache. It is a hash, not a reversible encoding; distinct
// states may in principle collide, which callers accept the same way
// the teacher's lazy DFA cache accepts NFA-state-set hash collisions.
type StateKey uint64

// HashStackTops computes a canonical StateKey for a set of stack-top
// signatures (opaque ints identifying persistent-stack frames). The
// signatures are sorted before hashing so the same state reached by
// differently-ordered exploration hashes identically.
func HashStackTops(tops []int64) StateKey {
	if len(tops) == 0 {
		return StateKey(0)
	}
	sorted := make([]int64, len(tops))
	copy(sorted, tops)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := fnv.New64a()
	var buf [8]byte
	for _, v := range sorted {
		u := uint64(v)
		for i := 0; i < 8; i++ {
			buf[i] = byte(u >> (8 * i))
		}
		h.Write(buf[:])
	}
	return StateKey(h.Sum64())
}

// CacheConfig configures a Cache, mirroring the teacher's functional
// Default.../With... configuration pattern.
type CacheConfig struct {
	MaxEntries int
	MaxBytes   int64
}

// DefaultCacheConfig returns sensible defaults: 100k entries with no
// byte budget (entry-count bounded only).
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{MaxEntries: 100_000, MaxBytes: 0}
}

type entry struct {
	key   StateKey
	mask  *AdaptiveTokenMask
	bytes int
	elem  *list.Element
}

// pendingCompute is the shared future used to de-duplicate concurrent
// misses on the same key: the first caller to observe a miss installs
// one of these, computes the mask, then closes done so every other
// caller blocked on the same key observes the same result.
type pendingCompute struct {
	done chan struct{}
	mask *AdaptiveTokenMask
	err  error
}

// Cache is a concurrency-safe, size-bounded LRU store of
// AdaptiveTokenMask values keyed by matcher state. Concurrent misses on
// the same key are coalesced into a single computation (a "shared
// future"), the concurrent analogue of the teacher's GetOrInsert.
//
// Thread safety: all methods are safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[StateKey]*entry
	order      *list.List // front = most recently used
	pending    map[StateKey]*pendingCompute
	maxEntries int
	maxBytes   int64
	curBytes   int64

	hits   uint64
	misses uint64
	evicts uint64
}

// NewCache creates an empty cache per the given configuration.
func NewCache(cfg CacheConfig) *Cache {
	return &Cache{
		entries:    make(map[StateKey]*entry),
		order:      list.New(),
		pending:    make(map[StateKey]*pendingCompute),
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
	}
}

// Get retrieves a mask by key without computing it, for callers that
// want to distinguish "not cached" from "cached".
func (c *Cache) Get(key StateKey) (*AdaptiveTokenMask, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(e.elem)
	return e.mask, true
}

// GetOrCompute returns the cached mask for key, computing and inserting
// it via compute on a miss. Concurrent callers racing on the same key
// share one computation: only the first calls compute, the rest block
// on its result.
func (c *Cache) GetOrCompute(key StateKey, compute func() (*AdaptiveTokenMask, error)) (*AdaptiveTokenMask, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(e.elem)
		c.mu.Unlock()
		return e.mask, nil
	}
	if p, ok := c.pending[key]; ok {
		c.mu.Unlock()
		<-p.done
		return p.mask, p.err
	}
	p := &pendingCompute{done: make(chan struct{})}
	c.pending[key] = p
	c.misses++
	c.mu.Unlock()

	mask, err := compute()
	p.mask, p.err = mask, err
	close(p.done)

	c.mu.Lock()
	delete(c.pending, key)
	if err == nil {
		c.insertLocked(key, mask)
	}
	c.mu.Unlock()
	return mask, err
}

// Insert unconditionally stores a precomputed mask, evicting the
// least-recently-used entry if at capacity.
func (c *Cache) Insert(key StateKey, mask *AdaptiveTokenMask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(key, mask)
}

func (c *Cache) insertLocked(key StateKey, mask *AdaptiveTokenMask) {
	if existing, ok := c.entries[key]; ok {
		c.curBytes -= int64(existing.bytes)
		existing.mask = mask
		existing.bytes = mask.SizeBytes()
		c.curBytes += int64(existing.bytes)
		c.order.MoveToFront(existing.elem)
		return
	}

	sz := mask.SizeBytes()
	e := &entry{key: key, mask: mask, bytes: sz}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e
	c.curBytes += int64(sz)

	c.evictLocked()
}

// evictLocked removes least-recently-used entries until both the entry
// count and byte budget are satisfied, mirroring the teacher's
// clear-on-full strategy but at per-entry granularity instead of a full
// cache wipe, since individual masks are cheap to recompute.
func (c *Cache) evictLocked() {
	for (c.maxEntries > 0 && len(c.entries) > c.maxEntries) ||
		(c.maxBytes > 0 && c.curBytes > c.maxBytes) {
		back := c.order.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.entries, e.key)
		c.curBytes -= int64(e.bytes)
		c.evicts++
	}
}

// Clear empties the cache, discarding all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[StateKey]*entry)
	c.order.Init()
	c.curBytes = 0
}

// Stats reports cumulative cache performance counters.
func (c *Cache) Stats() (hits, misses, evicts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evicts
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
