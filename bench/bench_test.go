// Package bench provides reproducible micro-benchmarks for
// internal/ttlcache, the response-cache engine behind internal/respcache.
// Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// The benchmarks use a single key/value shape so results are comparable
// across versions:
//   - Key   - uint64 (cheap hashing, fits in register)
//   - Value - 64-byte struct (large enough to matter, small enough for cache)
//
// We measure:
//  1. Put         - write-only workload
//  2. GetOrLoad    - read-mostly workload (after warm-up)
//  3. GetOrLoadParallel - highly concurrent reads (b.RunParallel)
//  4. GetOrLoadMixed   - 90% hits, 10% misses with loader cost
//
// © 2025 opening-explorer authors. MIT License.
package bench

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opnexpl/openingexplorer/internal/ttlcache"
)

type value64 struct {
	_ [64]byte
}

const (
	capBytes = 64 << 20 // 64 MiB cap
	ttl      = time.Minute
	shards   = 16
	keys     = 1 << 16 // 64K keys for dataset
)

func newTestCache(b *testing.B) *ttlcache.Cache[uint64, value64] {
	c, err := ttlcache.New[uint64, value64](capBytes, ttl, shards)
	if err != nil {
		b.Fatalf("ttlcache.New: %v", err)
	}
	return c
}

var ds = func() []uint64 {
	r := rand.New(rand.NewSource(42))
	arr := make([]uint64, keys)
	for i := range arr {
		arr[i] = r.Uint64()
	}
	return arr
}()

func BenchmarkPut(b *testing.B) {
	c := newTestCache(b)
	defer c.Close()
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(ds[i&(keys-1)], val)
	}
}

func BenchmarkGetOrLoad(b *testing.B) {
	c := newTestCache(b)
	defer c.Close()
	val := value64{}
	ctx := context.Background()
	loader := func(ctx context.Context, key uint64) (value64, error) { return val, nil }
	for _, k := range ds {
		c.Put(k, val)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.GetOrLoad(ctx, ds[i&(keys-1)], loader)
	}
}

func BenchmarkGetOrLoadParallel(b *testing.B) {
	c := newTestCache(b)
	defer c.Close()
	val := value64{}
	ctx := context.Background()
	loader := func(ctx context.Context, key uint64) (value64, error) { return val, nil }
	for _, k := range ds {
		c.Put(k, val)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			c.GetOrLoad(ctx, ds[idx], loader)
		}
	})
}

func BenchmarkGetOrLoadMixed(b *testing.B) {
	c := newTestCache(b)
	defer c.Close()
	val := value64{}
	ctx := context.Background()
	for i, k := range ds {
		if i%10 != 0 { // 90% fill
			c.Put(k, val)
		}
	}
	var loaderCnt atomic.Uint64
	loader := func(ctx context.Context, key uint64) (value64, error) {
		loaderCnt.Add(1)
		return val, nil
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.GetOrLoad(ctx, ds[i&(keys-1)], loader)
	}
	b.ReportMetric(float64(loaderCnt.Load())/float64(b.N)*100, "miss-%")
}
