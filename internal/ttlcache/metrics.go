package ttlcache

// metrics.go defines a thin sink abstraction so the cache works with or
// without Prometheus wired in.
//
// © 2025 opening-explorer authors. MIT License.

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
	incHit(shard uint8)
	incMiss(shard uint8)
	incEvict(shard uint8)
	setArenaBytes(shard uint8, value int64)
}

type noopMetrics struct{}

func (noopMetrics) incHit(uint8)               {}
func (noopMetrics) incMiss(uint8)               {}
func (noopMetrics) incEvict(uint8)              {}
func (noopMetrics) setArenaBytes(uint8, int64)  {}

type promMetrics struct {
	name      string
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	bytes     *prometheus.GaugeVec

	bytesMirror []atomic.Int64
}

// newPromMetrics builds (or, if an equivalent set of collectors is
// already registered against reg, reuses) the cache's Prometheus
// collectors. A cache name is carried as a label rather than baked into
// the metric name so any number of named Cache[K,V] instances — one per
// respcache scope, or a fresh instance swapped in by Invalidate — can
// share one *prometheus.Registry without a duplicate-registration panic.
func newPromMetrics(shardCount int, reg *prometheus.Registry, name string) *promMetrics {
	label := []string{"cache", "shard"}
	pm := &promMetrics{
		name: name,
		hits: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "respcache", Name: "hits_total",
			Help: "Number of response cache hits.",
		}, label)),
		misses: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "respcache", Name: "misses_total",
			Help: "Number of response cache misses.",
		}, label)),
		evictions: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "respcache", Name: "evictions_total",
			Help: "Number of response cache entries evicted.",
		}, label)),
		bytes: registerOrReuseGauge(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "openingexplorer", Subsystem: "respcache", Name: "bytes",
			Help: "Approximate bytes held in the response cache.",
		}, label)),
		bytesMirror: make([]atomic.Int64, shardCount),
	}
	return pm
}

// registerOrReuse registers cv against reg, or returns the already
// registered vector of the same descriptor if one exists (AsCollector
// repeat-construction, e.g. across respcache.Cache.Invalidate reloads).
func registerOrReuse(reg *prometheus.Registry, cv *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return cv
}

func registerOrReuseGauge(reg *prometheus.Registry, gv *prometheus.GaugeVec) *prometheus.GaugeVec {
	if err := reg.Register(gv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return gv
}

func (m *promMetrics) incHit(shard uint8) {
	m.hits.WithLabelValues(m.name, strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) incMiss(shard uint8) {
	m.misses.WithLabelValues(m.name, strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) incEvict(shard uint8) {
	m.evictions.WithLabelValues(m.name, strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) setArenaBytes(shard uint8, value int64) {
	m.bytesMirror[shard].Store(value)
	m.bytes.WithLabelValues(m.name, strconv.Itoa(int(shard))).Set(float64(value))
}
