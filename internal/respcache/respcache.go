// Package respcache implements a size-bounded cache mapping a
// canonicalized query to a rendered ExplorerResponse, built on top of
// internal/ttlcache's generic sharded cache engine. Each scope's TTL
// (by default 2h for lichess queries, 4h for masters queries) is passed to
// internal/ttlcache, which stores it but expires no entry by age or
// idleness; capacity eviction is internal/ttlcache's job. Wholesale
// invalidation (on openings-table reload) swaps in a fresh cache instance
// under a pointer, avoiding a per-key walk.
//
// © 2025 opening-explorer authors. MIT License.
package respcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/ttlcache"
)

// Scope distinguishes the two cached query kinds, each with its own TTL.
type Scope uint8

const (
	ScopeMasters Scope = iota
	ScopeLichess
)

// Config tunes one scope's underlying ttlcache.
type Config struct {
	Name          string // distinguishes this scope's metric series, e.g. "masters"
	CapacityBytes int64
	Shards        uint8
	TTL           time.Duration
	Registry      *prometheus.Registry
	Logger        *zap.Logger
}

// Cache is the response cache for one scope (masters or lichess); the
// service owns one instance per scope, since each has its own TTL and the
// player scope (always streamed live) is never cached at all.
type Cache struct {
	inner atomic.Pointer[ttlcache.Cache[string, api.ExplorerResponse]]
	cfg   Config
}

// New builds a Cache for one scope.
func New(cfg Config) (*Cache, error) {
	if cfg.Shards == 0 {
		cfg.Shards = 16
	}
	if cfg.CapacityBytes == 0 {
		cfg.CapacityBytes = 256 << 20
	}
	c := &Cache{cfg: cfg}
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) reload() error {
	opts := []ttlcache.Option[string, api.ExplorerResponse]{}
	if c.cfg.Logger != nil {
		opts = append(opts, ttlcache.WithLogger[string, api.ExplorerResponse](c.cfg.Logger))
	}
	if c.cfg.Registry != nil {
		opts = append(opts, ttlcache.WithMetrics[string, api.ExplorerResponse](c.cfg.Registry, c.cfg.Name))
	}
	next, err := ttlcache.New[string, api.ExplorerResponse](c.cfg.CapacityBytes, c.cfg.TTL, c.cfg.Shards, opts...)
	if err != nil {
		return fmt.Errorf("respcache: build cache: %w", err)
	}
	c.inner.Store(next)
	return nil
}

// Invalidate wholesale-evicts every cached response, as happens on each
// openings-table reload, by swapping in a fresh empty cache under the
// pointer rather than walking keys.
func (c *Cache) Invalidate() error {
	return c.reload()
}

// Key canonicalizes the (PlaySpec, filter, limits, historyWanted) tuple
// into a cache key: a fixed-width hash of those fields. The speed and
// rating-group slices are sorted first, so their input order does not
// matter; the UCI moves are hashed in the order given. The scope is not
// part of the key, as each scope has its own Cache.
func Key(spec api.PlaySpec, filter api.Filter, limits api.Limits, historyWanted bool) string {
	h := sha256.New()

	fmt.Fprintf(h, "v=%s|fen=%s|", spec.Variant, spec.FEN)
	for _, m := range spec.UCIMoves {
		fmt.Fprintf(h, "%s,", m)
	}

	speeds := append([]int(nil), intsFrom(filter.Speeds)...)
	sort.Ints(speeds)
	fmt.Fprintf(h, "|speeds=%v", speeds)

	groups := append([]int(nil), intsFromRatingGroups(filter.RatingGroups)...)
	sort.Ints(groups)
	fmt.Fprintf(h, "|groups=%v", groups)

	fmt.Fprintf(h, "|since=%d,%t|until=%d,%t", filter.Since, filter.HasSince, filter.Until, filter.HasUntil)
	fmt.Fprintf(h, "|limits=%d,%d,%d|hist=%t", limits.Moves, limits.RecentGames, limits.TopGames, historyWanted)

	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:16])
}

func intsFrom[T ~uint8](speeds []T) []int {
	out := make([]int, len(speeds))
	for i, s := range speeds {
		out[i] = int(s)
	}
	return out
}

func intsFromRatingGroups[T ~uint8](groups []T) []int {
	return intsFrom(groups)
}

// Get looks up key, recording a metrics hit/miss if a registry was wired.
func (c *Cache) Get(key string) (api.ExplorerResponse, bool) {
	return c.inner.Load().Get(key)
}

// Put stores resp under key.
func (c *Cache) Put(key string, resp api.ExplorerResponse) {
	c.inner.Load().Put(key, resp)
}

// GetOrCompute returns the cached response for key, computing and storing
// it via compute if absent. Only one caller computes a given key at a
// time; concurrent callers for the same key wait and share the result.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (api.ExplorerResponse, error)) (api.ExplorerResponse, error) {
	return c.inner.Load().GetOrLoad(ctx, key, func(ctx context.Context, k string) (api.ExplorerResponse, error) {
		return compute(ctx)
	})
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	return c.inner.Load().Len()
}
