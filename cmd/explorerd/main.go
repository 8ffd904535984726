// Command explorerd is the explorer service process: it opens the
// storage engine, starts the fixed indexer worker pool, loads the
// openings table and blacklist (with periodic refresh goroutines),
// exposes a debug/metrics HTTP surface, and wires everything into an
// service.Service. The wire transport that would carry the query and import
// operations over HTTP/RPC lives elsewhere; this binary only gets the
// process to a steady running state.
//
// © 2025 opening-explorer authors. MIT License.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/blacklist"
	"github.com/opnexpl/openingexplorer/internal/config"
	"github.com/opnexpl/openingexplorer/internal/indexer"
	"github.com/opnexpl/openingexplorer/internal/metrics"
	"github.com/opnexpl/openingexplorer/internal/opening"
	"github.com/opnexpl/openingexplorer/internal/respcache"
	"github.com/opnexpl/openingexplorer/internal/service"
	"github.com/opnexpl/openingexplorer/internal/storage"
	"github.com/opnexpl/openingexplorer/internal/upstream"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.FromFlags(flag.NewFlagSet("explorerd", flag.ExitOnError), os.Args[1:])
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if lvl, lerr := zap.ParseAtomicLevel(cfg.LogLevel); lerr == nil {
		logger = logger.WithOptions(zap.IncreaseLevel(lvl.Level()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	eng, err := storage.Open(storage.Config{
		Dir:                       cfg.DataDir,
		BlockCacheBytes:           cfg.BlockCacheBytes,
		IndexCacheBytes:           cfg.IndexCacheBytes,
		WriteRateLimitBytesPerSec: cfg.WriteRateLimitBytesPerSec,
		MaxConcurrentOps:          cfg.MaxConcurrentStorageOps,
		Logger:                    logger.Named("storage"),
		Metrics:                   met,
	})
	if err != nil {
		logger.Fatal("open storage engine", zap.Error(err))
	}
	defer eng.Close()

	up := upstream.New(upstream.Config{BaseURL: cfg.UpstreamBaseURL, Bearer: cfg.UpstreamBearerToken})
	runner := indexer.NewRunner(eng, up, logger.Named("indexer"), met)
	queue := indexer.NewQueue[string](cfg.IndexerQueueCap)
	queue.SetMetrics(met)
	pool := indexer.NewPool(queue, runner, cfg.IndexerWorkers, logger.Named("indexer"))
	pool.Start(ctx)
	defer pool.Stop()

	mastersCache, err := respcache.New(respcache.Config{
		Name: "masters", CapacityBytes: cfg.RespCacheCapacityBytes, Shards: cfg.RespCacheShards,
		TTL: cfg.MastersCacheTTL, Registry: reg, Logger: logger.Named("respcache.masters"),
	})
	if err != nil {
		logger.Fatal("build masters response cache", zap.Error(err))
	}
	lichessCache, err := respcache.New(respcache.Config{
		Name: "lichess", CapacityBytes: cfg.RespCacheCapacityBytes, Shards: cfg.RespCacheShards,
		TTL: cfg.LichessCacheTTL, Registry: reg, Logger: logger.Named("respcache.lichess"),
	})
	if err != nil {
		logger.Fatal("build lichess response cache", zap.Error(err))
	}

	openings := opening.New()
	bl := blacklist.New()
	if cfg.UpstreamBearerToken != "" {
		fetcher := blacklist.NewFetcher(cfg.UpstreamBaseURL, cfg.UpstreamBearerToken)
		go fetcher.RunPeriodic(ctx, bl, logger.Named("blacklist"))
	}

	reloadOpenings := func() {
		f, err := os.Open(cfg.OpeningsTSVPath)
		if err != nil {
			logger.Error("open openings tsv", zap.Error(err))
			return
		}
		defer f.Close()
		if err := openings.Load(f); err != nil {
			logger.Error("load openings tsv", zap.Error(err))
			return
		}
		// Cached responses embed opening names; drop them all so the next
		// query re-renders against the fresh table.
		_ = mastersCache.Invalidate()
		_ = lichessCache.Invalidate()
		logger.Info("openings table reloaded", zap.Int("entries", openings.Len()))
	}
	if cfg.OpeningsTSVPath != "" {
		reloadOpenings()
		go func() {
			ticker := time.NewTicker(cfg.OpeningsRefresh)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					reloadOpenings()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	svc := service.NewService(service.Deps{
		Engine: eng, Runner: runner, Queue: queue, Pool: pool,
		Masters: mastersCache, Lichess: lichessCache,
		Openings: openings, Blacklist: bl, Metrics: met, Logger: logger.Named("service"),
	})
	_ = svc // wired for in-process callers; the wire transport is out of scope.

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/heap", pprof.Handler("heap").ServeHTTP)
	mux.HandleFunc("/debug/pprof/goroutine", pprof.Handler("goroutine").ServeHTTP)
	mux.HandleFunc("/debug/explorer/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"indexer_queue_depth": queue.Len(),
			"masters_cache_len":   mastersCache.Len(),
			"lichess_cache_len":   lichessCache.Len(),
			"openings_table_len":  openings.Len(),
			"blacklist_len":       bl.Len(),
			"storage_dir":         cfg.DataDir,
		})
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("explorerd listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server", zap.Error(err))
	}
}
