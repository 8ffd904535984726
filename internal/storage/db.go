// Package storage wraps BadgerDB behind a column-family-shaped
// interface: six logical families distinguished by a one-byte
// key prefix, per-family merge semantics, bounded range scans, a block
// cache, and a write-rate limiter.
//
// Badger serves here as an on-disk L2 store generalized from a cache
// backing store into the system of record.
//
// © 2025 opening-explorer authors. MIT License.
package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/opnexpl/openingexplorer/internal/metrics"
)

// Config tunes the engine's knobs, translated to Badger's equivalents.
type Config struct {
	Dir string

	// BlockCacheBytes sizes Badger's block cache; ~2/3 of system RAM is a
	// reasonable target, leaving headroom for the page cache.
	BlockCacheBytes int64
	IndexCacheBytes int64

	// WriteRateLimitBytesPerSec bounds blocking-pool write throughput so
	// bulk imports/compactions leave bandwidth for query latency.
	WriteRateLimitBytesPerSec int64

	// MaxConcurrentOps bounds the blocking-pool permit semaphore.
	MaxConcurrentOps int64

	Logger *zap.Logger

	// Metrics records per-CF operation counts/latency; nil disables
	// recording, same convention as every other component in this
	// service.
	Metrics *metrics.Metrics
}

func (c *Config) setDefaults() {
	if c.BlockCacheBytes == 0 {
		c.BlockCacheBytes = 1 << 30
	}
	if c.IndexCacheBytes == 0 {
		c.IndexCacheBytes = 256 << 20
	}
	if c.WriteRateLimitBytesPerSec == 0 {
		c.WriteRateLimitBytesPerSec = 10 << 20
	}
	if c.MaxConcurrentOps == 0 {
		c.MaxConcurrentOps = 128
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// MergeFunc is the per-CF merge operator: fold existing (nil if absent)
// with every operand, in the order they were appended, and return the new
// value to store. Same shape as the RocksDB-style MergeOperands
// callback.
type MergeFunc func(existing []byte, operands [][]byte) ([]byte, error)

// Engine is the shared, cheap-to-clone storage handle threaded into
// every importer, indexer worker and query handler.
type Engine struct {
	db     *badger.DB
	logger *zap.Logger

	merges map[CF]MergeFunc

	// permits bounds concurrent blocking Badger calls from the async
	// paths, acquired with weight 1 per op.
	permits *semaphore.Weighted

	limiter *rateLimiter
	metrics *metrics.Metrics
}

// Open opens (or creates) the on-disk database directory and registers the
// merge operators for the three aggregation CFs plus the lichess_game
// OR-merge.
func Open(cfg Config) (*Engine, error) {
	cfg.setDefaults()

	opts := badger.DefaultOptions(cfg.Dir).
		WithLogger(newBadgerLogAdapter(cfg.Logger)).
		WithBlockCacheSize(cfg.BlockCacheBytes).
		WithIndexCacheSize(cfg.IndexCacheBytes).
		WithCompression(options.ZSTD).
		WithBlockSize(64 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger at %q: %w", cfg.Dir, err)
	}

	e := &Engine{
		db:      db,
		logger:  cfg.Logger,
		permits: semaphore.NewWeighted(cfg.MaxConcurrentOps),
		limiter: newRateLimiter(cfg.WriteRateLimitBytesPerSec),
		metrics: cfg.Metrics,
	}
	e.merges = defaultMergeTable()
	return e, nil
}

// Close flushes and closes the underlying database.
func (e *Engine) Close() error {
	e.limiter.close()
	return e.db.Close()
}

// acquire blocks until a blocking-pool permit is available, honoring ctx
// cancellation.
func (e *Engine) acquire(ctx context.Context) error {
	return e.permits.Acquire(ctx, 1)
}

func (e *Engine) release() {
	e.permits.Release(1)
}

// RunValueGC runs one pass of Badger's value-log garbage collection; call
// periodically from a maintenance goroutine (there is no exact RocksDB
// "manual compaction" analogue, but this serves the same operational
// purpose for an LSM engine that never otherwise reclaims space from
// merged/overwritten values).
func (e *Engine) RunValueGC(discardRatio float64) error {
	err := e.db.RunValueLogGC(discardRatio)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}
