package ttlcache

// LoaderFunc is invoked by GetOrLoad when a key is absent. It must be safe
// for concurrent use by different keys and should honour ctx cancellation.
//
// © 2025 opening-explorer authors. MIT License.

import "context"

type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)
