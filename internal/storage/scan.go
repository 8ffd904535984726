// © 2025 opening-explorer authors. MIT License.

package storage

import (
	"context"
	"encoding/binary"
	"math/rand/v2"

	"github.com/dgraph-io/badger/v4"
)

// CacheHint tells a scan whether to ask Badger to populate its block
// cache for the touched blocks. Shallow-ply queries always populate the
// cache while deep-ply queries populate probabilistically: the opening
// tree fan-out near the root is small and hot, deeper positions are
// many and cold.
//
// Mirrors a ply-banded cache-fill heuristic.
type CacheHint struct {
	ply uint32
}

// CacheHintFromPly derives a hint from the queried position's ply count.
func CacheHintFromPly(ply uint32) CacheHint { return CacheHint{ply: ply} }

// CacheHintAlways always fills the cache, for paths with no notion of ply
// (e.g. game-id lookups).
func CacheHintAlways() CacheHint { return CacheHint{ply: 0} }

// ShouldFillCache reports whether this call should populate the block
// cache, using a ply-banded probability curve: early plies (shared by
// many games) are always worth caching, deep plies rarely recur.
func (h CacheHint) ShouldFillCache() bool {
	var percent int
	switch {
	case h.ply < 5:
		return true
	case h.ply < 10:
		percent = 90
	case h.ply < 15:
		percent = 70
	case h.ply < 20:
		percent = 40
	case h.ply < 25:
		percent = 10
	default:
		percent = 2
	}
	return rand.IntN(100) < percent
}

// ScanFunc receives each (bucket, value) pair visited by Scan, in
// ascending bucket order. value is only valid for the
// duration of the call; copy it if retained.
type ScanFunc func(bucket uint16, value []byte) error

// Scan iterates every key with the given 12-byte position prefix whose
// trailing 2-byte bucket falls in [since, until), upper-exclusive,
// lower-inclusive, calling fn for each in ascending order.
func (e *Engine) Scan(ctx context.Context, cf CF, prefix []byte, since, until uint16, hint CacheHint, fn ScanFunc) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	fullPrefix := prefixKey(cf, prefix)

	lower := appendBucket(append([]byte(nil), fullPrefix...), since)
	upper := appendBucket(append([]byte(nil), fullPrefix...), until)

	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fullPrefix
		opts.PrefetchValues = hint.ShouldFillCache()
		opts.PrefetchSize = 16

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(lower); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			if bytesCompare(k, upper) >= 0 {
				break
			}
			bucket := binary.BigEndian.Uint16(k[len(k)-2:])
			err := item.Value(func(val []byte) error {
				return fn(bucket, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapFatal(err)
	}
	return nil
}

func appendBucket(key []byte, bucket uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], bucket)
	return append(key, b[:]...)
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
