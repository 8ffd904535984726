// Package metrics defines Prometheus counters/gauges/histograms for
// every component of the service, wired through the same
// atomic-mirror-plus-Prometheus-collector pattern
// internal/ttlcache/metrics.go uses for the response cache, generalized
// here to the whole process: importer acceptance/rejection, indexer
// queue depth and worker throughput, storage operation counts, and
// query latency.
//
// Registered once at startup and passed down by reference into every component
// that needs to record against it; nothing in the hot path takes a lock.
//
// © 2025 opening-explorer authors. MIT License.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every counter/gauge/histogram the service's components
// record against. The zero value is not usable; construct with New.
type Metrics struct {
	ImportsAccepted  *prometheus.CounterVec // labels: scope
	ImportsRejected  *prometheus.CounterVec // labels: scope, reason

	IndexerQueueDepth prometheus.Gauge
	IndexerRunsTotal  *prometheus.CounterVec // labels: outcome (completed, skipped, upstream_error)
	indexerQueueDepth atomic.Int64

	StorageOpsTotal   *prometheus.CounterVec // labels: cf, op
	StorageOpDuration *prometheus.HistogramVec // labels: cf, op

	QueryDuration *prometheus.HistogramVec // labels: scope

	RespCacheHits   *prometheus.CounterVec // labels: scope
	RespCacheMisses *prometheus.CounterVec // labels: scope
}

// New builds and registers every collector against reg. reg must not be
// nil; callers that want metrics disabled should simply not construct a
// Metrics at all and thread nil pointers (each method below guards a nil
// receiver).
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ImportsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "importer", Name: "accepted_total",
			Help: "Games accepted by an importer.",
		}, []string{"scope"}),
		ImportsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "importer", Name: "rejected_total",
			Help: "Games rejected by an importer.",
		}, []string{"scope", "reason"}),
		IndexerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "openingexplorer", Subsystem: "indexer", Name: "queue_depth",
			Help: "Number of users currently queued or in flight for indexing.",
		}),
		IndexerRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "indexer", Name: "runs_total",
			Help: "Per-user indexing runs, by outcome.",
		}, []string{"outcome"}),
		StorageOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "storage", Name: "ops_total",
			Help: "Storage engine operations, by column family and kind.",
		}, []string{"cf", "op"}),
		StorageOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "openingexplorer", Subsystem: "storage", Name: "op_duration_seconds",
			Help:    "Storage engine operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"cf", "op"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "openingexplorer", Subsystem: "query", Name: "duration_seconds",
			Help:    "Query handler latency, by scope.",
			Buckets: prometheus.DefBuckets,
		}, []string{"scope"}),
		RespCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "query", Name: "cache_hits_total",
			Help: "Query responses served from the response cache.",
		}, []string{"scope"}),
		RespCacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openingexplorer", Subsystem: "query", Name: "cache_misses_total",
			Help: "Query responses computed fresh (response cache miss).",
		}, []string{"scope"}),
	}
	reg.MustRegister(
		m.ImportsAccepted, m.ImportsRejected,
		m.IndexerQueueDepth, m.IndexerRunsTotal,
		m.StorageOpsTotal, m.StorageOpDuration,
		m.QueryDuration, m.RespCacheHits, m.RespCacheMisses,
	)
	return m
}

// SetIndexerQueueDepth records the indexer queue's current length,
// observed each time a worker pops or a submission lands.
func (m *Metrics) SetIndexerQueueDepth(n int) {
	if m == nil {
		return
	}
	m.indexerQueueDepth.Store(int64(n))
	m.IndexerQueueDepth.Set(float64(n))
}

// ObserveStorageOp records one storage-engine call's duration under
// (cf, op), the pattern internal/storage's Get/Put/Merge/Scan wrap their
// bodies in.
func (m *Metrics) ObserveStorageOp(cf, op string, start time.Time) {
	if m == nil {
		return
	}
	m.StorageOpsTotal.WithLabelValues(cf, op).Inc()
	m.StorageOpDuration.WithLabelValues(cf, op).Observe(time.Since(start).Seconds())
}

// ObserveQuery records one masters/lichess/player query call's
// latency.
func (m *Metrics) ObserveQuery(scope string, start time.Time) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
}

// RecordImport records an importer outcome: reason == "" means accepted.
func (m *Metrics) RecordImport(scope, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		m.ImportsAccepted.WithLabelValues(scope).Inc()
		return
	}
	m.ImportsRejected.WithLabelValues(scope, reason).Inc()
}

// RecordIndexerRun records a completed per-user run's outcome ("completed",
// "skipped", "upstream_error").
func (m *Metrics) RecordIndexerRun(outcome string) {
	if m == nil {
		return
	}
	m.IndexerRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordRespCache records a response-cache hit or miss for scope.
func (m *Metrics) RecordRespCache(scope string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.RespCacheHits.WithLabelValues(scope).Inc()
		return
	}
	m.RespCacheMisses.WithLabelValues(scope).Inc()
}
