package ttlcache

// config.go defines the internal configuration object and the set of
// functional options that can be passed to New[K,V], following the rule
// that options never allocate unless strictly necessary.
//
// © 2025 opening-explorer authors. MIT License.

import (
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/ttlcache/clockpro"
)

// WeightFn calculates an integer weight for the stored value V (bytes, or
// any other relative cost unit). Must be cheap: it runs on every Put.
type WeightFn[V any] func(V) int

type EjectCallback[K comparable, V any] func(key K, val V, reason clockpro.EvictionReason)

type Option[K comparable, V any] func(*config[K, V])

type config[K comparable, V any] struct {
	capBytes int64
	ttl      time.Duration
	shards   uint8

	registry *prometheus.Registry
	regName  string
	logger   *zap.Logger
	weightFn WeightFn[V]
	ejectCb  EjectCallback[K, V]

	metrics metricsSink
}

func defaultWeightFn[V any](v V) int {
	w := int(unsafe.Sizeof(v))
	if w <= 0 {
		return 1
	}
	return w
}

func defaultConfig[K comparable, V any](capBytes int64, ttl time.Duration, shards uint8) *config[K, V] {
	return &config[K, V]{
		capBytes: capBytes,
		ttl:      ttl,
		shards:   shards,
		weightFn: defaultWeightFn[V],
		logger:   zap.NewNop(),
	}
}

// WithMetrics enables Prometheus metrics collection for this cache
// instance, labeling its series with name so multiple named instances can
// share one registry (e.g. respcache's masters/lichess scopes).
func WithMetrics[K comparable, V any](reg *prometheus.Registry, name string) Option[K, V] {
	return func(c *config[K, V]) { c.registry = reg; c.regName = name }
}

// WithLogger plugs an external zap.Logger. The cache stores the logger but
// emits no log lines of its own, generation rotations included.
func WithLogger[K comparable, V any](l *zap.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWeightFn overrides the default size-based weight calculation.
func WithWeightFn[K comparable, V any](fn WeightFn[V]) Option[K, V] {
	return func(c *config[K, V]) {
		if fn != nil {
			c.weightFn = fn
		}
	}
}

// WithEjectCallback registers a function invoked whenever an item is
// evicted, whether by capacity pressure or generation expiry. Must not
// block.
func WithEjectCallback[K comparable, V any](cb EjectCallback[K, V]) Option[K, V] {
	return func(c *config[K, V]) { c.ejectCb = cb }
}

func applyOptions[K comparable, V any](cfg *config[K, V], opts []Option[K, V]) error {
	for _, opt := range opts {
		opt(cfg)
	}
	return nil
}
