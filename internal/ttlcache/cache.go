// Package ttlcache is the response cache's generic storage engine: a
// sharded, capacity-bounded map whose entries also leave when their
// generation is rotated out. The ttl given to New is validated and stored;
// no entry is expired by age or idleness.
//
// The sharding, generation-ring TTL design and CLOCK capacity eviction
// follow a prior standalone in-process cache library; what changed from
// that design is recorded at the top of the clockpro and arena
// subpackages. This package drops that library's cross-package unsafe
// entry reinterpretation (its shard type used to keep its own
// `entry[K,V]` and hand pointers to clockpro while claiming an identical
// memory layout across two independently-instantiated generic types) in
// favor of sharing clockpro.Entry[K,V] directly — simpler, and actually
// sound.
//
// © 2025 opening-explorer authors. MIT License.
package ttlcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/opnexpl/openingexplorer/internal/ttlcache/clockpro"
	"github.com/opnexpl/openingexplorer/internal/ttlcache/genring"
	"github.com/opnexpl/openingexplorer/internal/unsafehelpers"
)

// EjectReason re-exports clockpro's eviction reason for callers that only
// import this package.
type EjectReason = clockpro.EvictionReason

const (
	ReasonCapacity   = clockpro.ReasonCapacity
	ReasonGeneration = clockpro.ReasonGeneration
)

// shard owns one slice of the key space: its own index, clock and
// generation ring, guarded by its own RWMutex so that shards don't
// contend with each other.
type shard[K comparable, V any] struct {
	mu sync.RWMutex

	index   map[uint64]*clockpro.Entry[K, V]
	clock   *clockpro.Clock[K, V]
	genRing *genring.Ring[K, V]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func newShard[K comparable, V any](capBytes int64, ttl time.Duration, ejectCb func(K, V, clockpro.EvictionReason)) *shard[K, V] {
	wrappedEject := func(k K, v V, reason clockpro.EvictionReason) {
		if ejectCb != nil {
			ejectCb(k, v, reason)
		}
	}
	return &shard[K, V]{
		index:   make(map[uint64]*clockpro.Entry[K, V], 256),
		clock:   clockpro.NewClock[K, V](capBytes, wrappedEject),
		genRing: genring.New[K, V](capBytes, ttl),
	}
}

func hashKey[K comparable](key K) uint64 {
	switch k := any(key).(type) {
	case string:
		return xxhash.Sum64String(k)
	case []byte:
		return xxhash.Sum64(k)
	default:
		b := unsafehelpers.ByteSliceFrom(unsafe.Pointer(&key), unsafe.Sizeof(key))
		return xxhash.Sum64(b)
	}
}

func (s *shard[K, V]) get(key K) (val V, ok bool) {
	h := hashKey(key)

	s.mu.RLock()
	ent, found := s.index[h]
	s.mu.RUnlock()

	if !found || ent.Key != key {
		s.misses.Add(1)
		return val, false
	}
	s.hits.Add(1)
	ent.Touch()
	return ent.Val, true
}

func (s *shard[K, V]) put(key K, val V, weight int) {
	h := hashKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.genRing.Active()
	if old, ok := s.index[h]; ok && old.Key == key {
		s.clock.Remove(old)
		delete(s.index, h)
	}

	ent := &clockpro.Entry[K, V]{Key: key, Val: val, Weight: uint32(weight), GenID: gen.ID()}
	s.index[h] = ent
	s.clock.Insert(ent)

	if s.genRing.CheckRotationNeeded(int64(weight)) {
		s.rotate()
	}
}

func (s *shard[K, V]) delete(key K) {
	h := hashKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.index[h]; ok && ent.Key == key {
		delete(s.index, h)
		s.clock.Remove(ent)
		s.evictions.Add(1)
	}
}

// rotate frees the oldest generation in the ring and
// drops its entries from both the index and the clock ring.
func (s *shard[K, V]) rotate() {
	dead := s.genRing.Rotate()
	if dead == nil {
		return
	}
	deadID := dead.ID()
	s.clock.GenerationEvicted(deadID, clockpro.ReasonGeneration)
	for h, ent := range s.index {
		if ent.GenID == deadID {
			delete(s.index, h)
			s.evictions.Add(1)
		}
	}
}

func (s *shard[K, V]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

func (s *shard[K, V]) sizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, ent := range s.index {
		total += int64(ent.Weight)
	}
	return total
}

func (s *shard[K, V]) statsSnapshot() (hits, misses, evict uint64) {
	return s.hits.Load(), s.misses.Load(), s.evictions.Load()
}

func (s *shard[K, V]) getOrLoad(ctx context.Context, key K, lg *loaderGroup[K, V], fn LoaderFunc[K, V], weightFn func(V) int) (V, error) {
	if v, ok := s.get(key); ok {
		return v, nil
	}
	h := hashKey(key)
	val, err, _ := lg.load(ctx, h, key, fn)
	if err != nil {
		return val, err
	}
	s.put(key, val, weightFn(val))
	return val, nil
}

// Cache is a sharded, capacity-bounded map from K to V.
type Cache[K comparable, V any] struct {
	shards []*shard[K, V]
	cfg    *config[K, V]
	lg     *loaderGroup[K, V]
}

var errInvalidCap = errors.New("ttlcache: capacity bytes must be > 0")
var errInvalidTTL = errors.New("ttlcache: ttl must be > 0")
var errInvalidShards = errors.New("ttlcache: shards must be power-of-two and > 0")

// New creates a Cache with the given total capacity (bytes), generation TTL
// and shard count (must be a power of two).
func New[K comparable, V any](capBytes int64, ttl time.Duration, shards uint8, opts ...Option[K, V]) (*Cache[K, V], error) {
	if capBytes <= 0 {
		return nil, errInvalidCap
	}
	if ttl <= 0 {
		return nil, errInvalidTTL
	}
	if shards == 0 || (shards&(shards-1)) != 0 {
		return nil, errInvalidShards
	}

	cfg := defaultConfig[K, V](capBytes, ttl, shards)
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	c := &Cache[K, V]{
		shards: make([]*shard[K, V], shards),
		cfg:    cfg,
		lg:     newLoaderGroup[K, V](),
	}
	perShard := capBytes / int64(shards)
	if perShard == 0 {
		perShard = capBytes
	}
	for i := range c.shards {
		c.shards[i] = newShard[K, V](perShard, ttl, cfg.ejectCb)
	}
	if cfg.registry != nil {
		cfg.metrics = newPromMetrics(int(shards), cfg.registry, cfg.regName)
	} else {
		cfg.metrics = noopMetrics{}
	}
	return c, nil
}

func (c *Cache[K, V]) shardIndex(key K) int {
	return int(hashKey(key) % uint64(len(c.shards)))
}

// Put inserts a value, weighed by the configured WeightFn unless an
// explicit weight override is supplied via PutWeighted.
func (c *Cache[K, V]) Put(key K, value V) {
	c.PutWeighted(key, value, c.cfg.weightFn(value))
}

// PutWeighted inserts a value with an explicit weight.
func (c *Cache[K, V]) PutWeighted(key K, value V, weight int) {
	idx := c.shardIndex(key)
	c.shards[idx].put(key, value, weight)
	c.cfg.metrics.setArenaBytes(uint8(idx), c.shards[idx].sizeBytes())
}

// Get returns the cached value for key, if present and not yet evicted.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	idx := c.shardIndex(key)
	v, ok := c.shards[idx].get(key)
	if ok {
		c.cfg.metrics.incHit(uint8(idx))
	} else {
		c.cfg.metrics.incMiss(uint8(idx))
	}
	return v, ok
}

// GetOrLoad returns the cached value, or computes it via loader — with at
// most one concurrent computation per key across all callers
// (golang.org/x/sync/singleflight; see loader.go).
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, loader LoaderFunc[K, V]) (V, error) {
	idx := c.shardIndex(key)
	return c.shards[idx].getOrLoad(ctx, key, c.lg, loader, c.cfg.weightFn)
}

// Delete removes key from the cache, if present.
func (c *Cache[K, V]) Delete(key K) {
	idx := c.shardIndex(key)
	c.shards[idx].delete(key)
	c.cfg.metrics.incEvict(uint8(idx))
}

// Len returns the total number of items in the cache.
func (c *Cache[K, V]) Len() int {
	total := 0
	for _, shard := range c.shards {
		total += shard.len()
	}
	return total
}

// SizeBytes returns the total weighed size of the cache.
func (c *Cache[K, V]) SizeBytes() int64 {
	total := int64(0)
	for _, shard := range c.shards {
		total += shard.sizeBytes()
	}
	return total
}

// Stats sums hit/miss/eviction counters across all shards.
func (c *Cache[K, V]) Stats() (hits, misses, evictions uint64) {
	for _, shard := range c.shards {
		h, m, e := shard.statsSnapshot()
		hits += h
		misses += m
		evictions += e
	}
	return
}

// Close is a no-op retained for interface parity with other cache
// implementations in this codebase; ttlcache holds no OS resources of its
// own.
func (c *Cache[K, V]) Close() {}
