package ttlcache

// loader.go implements the singleflight-based de-duplication layer behind
// Cache.GetOrLoad: only one goroutine executes the loader for a given key,
// the rest wait for its result — the get-or-compute, single-flight
// semantics the response cache needs.
//
// © 2025 opening-explorer authors. MIT License.

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

type loaderGroup[K comparable, V any] struct {
	g singleflight.Group
}

func newLoaderGroup[K comparable, V any]() *loaderGroup[K, V] {
	return &loaderGroup[K, V]{}
}

func (lg *loaderGroup[K, V]) load(ctx context.Context, keyHash uint64, key K, fn LoaderFunc[K, V]) (val V, err error, shared bool) {
	k := strconv.FormatUint(keyHash, 16)
	res, err, shared := lg.g.Do(k, func() (any, error) {
		return fn(ctx, key)
	})
	if err != nil {
		return val, err, shared
	}
	if ctx.Err() != nil {
		return val, ctx.Err(), shared
	}
	return res.(V), nil, shared
}
