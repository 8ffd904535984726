// Package config defines a typed configuration struct for the whole
// service, built with a functional-options shape
// generalized across every component (storage, indexer, upstream,
// response cache) plus flag/env loading for cmd/explorerd.
//
// Every field gets a sensible default in defaultConfig(), options only
// capture values (no hidden allocation), and the struct is validated once
// at the end rather than field-by-field as options apply.
//
// © 2025 opening-explorer authors. MIT License.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config bundles every knob the service's components need at startup.
type Config struct {
	// Storage (internal/storage.Config).
	DataDir                   string
	BlockCacheBytes           int64
	IndexCacheBytes           int64
	WriteRateLimitBytesPerSec int64
	MaxConcurrentStorageOps   int64

	// Indexer (internal/indexer).
	IndexerWorkers      int
	IndexerQueueCap     int
	UpstreamBaseURL     string
	UpstreamBearerToken string

	// Response cache (internal/respcache).
	RespCacheCapacityBytes int64
	RespCacheShards        uint8
	LichessCacheTTL        time.Duration
	MastersCacheTTL        time.Duration
	RespCacheIdleEvict     time.Duration

	// Openings/blacklist refresh cadence (internal/opening, internal/blacklist).
	OpeningsTSVPath  string // empty disables opening classification
	OpeningsRefresh  time.Duration
	BlacklistRefresh time.Duration

	// Debug/metrics HTTP surface.
	ListenAddr string

	// Log level, parsed by cmd/explorerd into a zap level.
	LogLevel string
}

// Option mutates a Config under construction.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		DataDir:                   "./data/explorer",
		BlockCacheBytes:           1 << 30,
		IndexCacheBytes:           256 << 20,
		WriteRateLimitBytesPerSec: 10 << 20,
		MaxConcurrentStorageOps:   128,

		IndexerWorkers:  8,
		IndexerQueueCap: 200,
		UpstreamBaseURL: "https://lichess.org",

		RespCacheCapacityBytes: 512 << 20,
		RespCacheShards:        16,
		LichessCacheTTL:        2 * time.Hour,
		MastersCacheTTL:        4 * time.Hour,
		RespCacheIdleEvict:     10 * time.Minute,

		OpeningsRefresh:  167 * time.Minute,
		BlacklistRefresh: 173 * time.Minute,

		ListenAddr: ":9663",
		LogLevel:   "info",
	}
}

// WithDataDir overrides the on-disk database directory.
func WithDataDir(dir string) Option { return func(c *Config) { c.DataDir = dir } }

// WithIndexerWorkers overrides the fixed indexer worker pool size.
func WithIndexerWorkers(n int) Option { return func(c *Config) { c.IndexerWorkers = n } }

// WithIndexerQueueCap overrides the bounded indexer queue's capacity.
func WithIndexerQueueCap(n int) Option { return func(c *Config) { c.IndexerQueueCap = n } }

// WithUpstream overrides the upstream game-archive base URL and bearer
// token used by the player pipeline's crawl.
func WithUpstream(baseURL, bearer string) Option {
	return func(c *Config) { c.UpstreamBaseURL = baseURL; c.UpstreamBearerToken = bearer }
}

// WithMaxConcurrentStorageOps overrides the blocking-pool permit
// semaphore's capacity bounding concurrent storage operations.
func WithMaxConcurrentStorageOps(n int64) Option {
	return func(c *Config) { c.MaxConcurrentStorageOps = n }
}

// WithWriteRateLimit overrides the storage engine's write-throughput
// budget in bytes/sec, protecting query latency during bulk imports.
func WithWriteRateLimit(bytesPerSec int64) Option {
	return func(c *Config) { c.WriteRateLimitBytesPerSec = bytesPerSec }
}

// WithRespCache overrides the response cache's capacity and shard count.
func WithRespCache(capacityBytes int64, shards uint8) Option {
	return func(c *Config) { c.RespCacheCapacityBytes = capacityBytes; c.RespCacheShards = shards }
}

// WithListenAddr overrides the debug/metrics HTTP surface's bind address.
func WithListenAddr(addr string) Option { return func(c *Config) { c.ListenAddr = addr } }

// WithLogLevel overrides the zap log level ("debug", "info", "warn", "error").
func WithLogLevel(level string) Option { return func(c *Config) { c.LogLevel = level } }

// New builds a Config from defaults plus opts, validating the result.
func New(opts ...Option) (*Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return errors.New("config: data dir must not be empty")
	}
	if c.IndexerWorkers <= 0 {
		return errors.New("config: indexer workers must be > 0")
	}
	if c.IndexerQueueCap <= 0 {
		return errors.New("config: indexer queue capacity must be > 0")
	}
	if c.RespCacheShards == 0 || (c.RespCacheShards&(c.RespCacheShards-1)) != 0 {
		return errors.New("config: response cache shard count must be a power of two")
	}
	if c.MaxConcurrentStorageOps <= 0 {
		return errors.New("config: max concurrent storage ops must be > 0")
	}
	return nil
}

// envOverrides applies OPENINGEXPLORER_* environment variables on top of
// cfg, the way a twelve-factor service layers env config beneath explicit
// flags. Flags (parsed by FromFlags) take precedence since they are
// applied after this call.
func envOverrides(cfg *Config) {
	if v := os.Getenv("OPENINGEXPLORER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("OPENINGEXPLORER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("OPENINGEXPLORER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OPENINGEXPLORER_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IndexerWorkers = n
		}
	}
	if v := os.Getenv("OPENINGEXPLORER_UPSTREAM_BEARER"); v != "" {
		cfg.UpstreamBearerToken = v
	}
}

// FromFlags builds a Config from env vars (OPENINGEXPLORER_*) overridden by
// the given flag.FlagSet's command-line arguments, the shape
// cmd/explorerd's main() calls into.
func FromFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := defaultConfig()
	envOverrides(cfg)

	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "on-disk storage directory")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "debug/metrics HTTP bind address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "zap log level")
	fs.IntVar(&cfg.IndexerWorkers, "indexer-workers", cfg.IndexerWorkers, "player indexer worker pool size")
	fs.IntVar(&cfg.IndexerQueueCap, "indexer-queue-cap", cfg.IndexerQueueCap, "player indexer queue capacity")
	fs.StringVar(&cfg.UpstreamBaseURL, "upstream-base-url", cfg.UpstreamBaseURL, "upstream game archive base URL")
	fs.StringVar(&cfg.UpstreamBearerToken, "upstream-bearer", cfg.UpstreamBearerToken, "upstream bearer token")
	fs.Int64Var(&cfg.BlockCacheBytes, "block-cache-bytes", cfg.BlockCacheBytes, "storage engine block cache size")
	fs.Int64Var(&cfg.WriteRateLimitBytesPerSec, "write-rate-limit-bytes", cfg.WriteRateLimitBytesPerSec, "storage write rate limit, bytes/sec")
	fs.Int64Var(&cfg.MaxConcurrentStorageOps, "max-concurrent-storage-ops", cfg.MaxConcurrentStorageOps, "blocking-pool permit semaphore capacity")
	fs.Int64Var(&cfg.RespCacheCapacityBytes, "resp-cache-capacity-bytes", cfg.RespCacheCapacityBytes, "response cache capacity")
	fs.StringVar(&cfg.OpeningsTSVPath, "openings-tsv", cfg.OpeningsTSVPath, "openings classification TSV path (empty disables)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
