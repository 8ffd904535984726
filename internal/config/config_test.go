// © 2025 opening-explorer authors. MIT License.

package config

import (
	"flag"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.IndexerWorkers != 8 {
		t.Fatalf("IndexerWorkers = %d, want 8", cfg.IndexerWorkers)
	}
	if cfg.RespCacheShards != 16 {
		t.Fatalf("RespCacheShards = %d, want 16", cfg.RespCacheShards)
	}
}

func TestNewRejectsNonPowerOfTwoShards(t *testing.T) {
	_, err := New(WithRespCache(1<<20, 3))
	if err == nil {
		t.Fatal("New: want error for non-power-of-two shard count")
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg, err := New(WithDataDir("/tmp/x"), WithIndexerWorkers(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.DataDir != "/tmp/x" || cfg.IndexerWorkers != 4 {
		t.Fatalf("cfg = %+v, want overrides applied", cfg)
	}
}

func TestFromFlagsOverridesDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := FromFlags(fs, []string{"-data-dir=/tmp/flagged", "-indexer-workers=3"})
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.DataDir != "/tmp/flagged" {
		t.Fatalf("DataDir = %q, want /tmp/flagged", cfg.DataDir)
	}
	if cfg.IndexerWorkers != 3 {
		t.Fatalf("IndexerWorkers = %d, want 3", cfg.IndexerWorkers)
	}
}
