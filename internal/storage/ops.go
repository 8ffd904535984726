// © 2025 opening-explorer authors. MIT License.

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound mirrors badger.ErrKeyNotFound under the storage package's own
// name so callers never need to import badger directly.
var ErrNotFound = badger.ErrKeyNotFound

// Get fetches the raw value stored at (cf, key), or ErrNotFound.
func (e *Engine) Get(ctx context.Context, cf CF, key []byte) ([]byte, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveStorageOp(cf.String(), "get", start) }()

	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	var out []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(prefixKey(cf, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", cf, wrapFatal(err))
	}
	return out, nil
}

// Put writes value at (cf, key) directly, with no merge step (masters_game,
// player_status).
func (e *Engine) Put(ctx context.Context, cf CF, key, value []byte) error {
	start := time.Now()
	defer func() { e.metrics.ObserveStorageOp(cf.String(), "put", start) }()

	if err := e.limiter.wait(ctx, int64(len(value))); err != nil {
		return err
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(prefixKey(cf, key), value)
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", cf, wrapFatal(err))
	}
	return nil
}

// Merge applies cf's merge operator to the existing value at key (if any)
// and the single operand, storing the result. Badger has no native
// per-CF merge operator, so this is a get/merge/set guarded by the
// single-writer discipline the importers and indexer already impose per
// scope and per user.
func (e *Engine) Merge(ctx context.Context, cf CF, key, operand []byte) error {
	start := time.Now()
	defer func() { e.metrics.ObserveStorageOp(cf.String(), "merge", start) }()

	fn, ok := e.merges[cf]
	if !ok {
		return fmt.Errorf("storage: %s has no merge operator", cf)
	}
	if err := e.limiter.wait(ctx, int64(len(operand))); err != nil {
		return err
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	err := e.db.Update(func(txn *badger.Txn) error {
		pk := prefixKey(cf, key)
		var existing []byte
		item, err := txn.Get(pk)
		switch {
		case err == nil:
			if verr := item.Value(func(val []byte) error {
				existing = append([]byte(nil), val...)
				return nil
			}); verr != nil {
				return verr
			}
		case err == badger.ErrKeyNotFound:
			// no existing value; fn is called with existing == nil
		default:
			return err
		}

		merged, err := fn(existing, [][]byte{operand})
		if err != nil {
			return fmt.Errorf("merge %s: %w", cf, err)
		}
		return txn.Set(pk, merged)
	})
	if err != nil {
		return fmt.Errorf("storage: merge %s: %w", cf, wrapFatal(err))
	}
	return nil
}

// Batch accumulates a set of put/merge operations to be committed
// atomically: a game and all of its position-keyed records must become
// visible together. Because Badger has no cross-key native
// merge-at-commit-time, Batch resolves merges eagerly in program order
// against a single snapshot transaction at Commit, which is equivalent
// for a batch's own writes since each key in a single game's batch is
// touched at most once (position dedup within a game guarantees this
// for the aggregation CFs; the *_game CF is touched exactly once per
// game id).
type Batch struct {
	eng *Engine
	ops []batchOp
}

type batchOp struct {
	cf      CF
	key     []byte
	value   []byte
	isMerge bool
}

// NewBatch starts a new atomic batch.
func (e *Engine) NewBatch() *Batch {
	return &Batch{eng: e}
}

// Put queues a plain put.
func (b *Batch) Put(cf CF, key, value []byte) {
	b.ops = append(b.ops, batchOp{cf: cf, key: append([]byte(nil), key...), value: value})
}

// Merge queues a merge operand.
func (b *Batch) Merge(cf CF, key, operand []byte) {
	b.ops = append(b.ops, batchOp{cf: cf, key: append([]byte(nil), key...), value: operand, isMerge: true})
}

// Commit applies every queued operation within one Badger transaction.
func (b *Batch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		seen := make(map[CF]bool, len(b.ops))
		for _, op := range b.ops {
			if seen[op.cf] {
				continue
			}
			seen[op.cf] = true
			b.eng.metrics.ObserveStorageOp(op.cf.String(), "batch_commit", start)
		}
	}()

	var totalBytes int64
	for _, op := range b.ops {
		totalBytes += int64(len(op.value))
	}
	if err := b.eng.limiter.wait(ctx, totalBytes); err != nil {
		return err
	}
	if err := b.eng.acquire(ctx); err != nil {
		return err
	}
	defer b.eng.release()

	err := b.eng.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			pk := prefixKey(op.cf, op.key)
			if !op.isMerge {
				if err := txn.Set(pk, op.value); err != nil {
					return err
				}
				continue
			}

			fn, ok := b.eng.merges[op.cf]
			if !ok {
				return fmt.Errorf("%s has no merge operator", op.cf)
			}

			var existing []byte
			item, err := txn.Get(pk)
			switch {
			case err == nil:
				if verr := item.Value(func(val []byte) error {
					existing = append([]byte(nil), val...)
					return nil
				}); verr != nil {
					return verr
				}
			case err == badger.ErrKeyNotFound:
			default:
				return err
			}

			merged, err := fn(existing, [][]byte{op.value})
			if err != nil {
				return fmt.Errorf("merge %s: %w", op.cf, err)
			}
			if err := txn.Set(pk, merged); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: commit batch: %w", wrapFatal(err))
	}
	return nil
}

// wrapFatal marks any error that is not a defined "not found" sentinel
// as fatal: a storage-engine failure is a process-invariant violation,
// not a recoverable condition. The wrapping itself does not panic;
// internal/storage.FatalHandler (invoked by the callers that treat the
// error as fatal) decides what "fatal" means operationally.
func wrapFatal(err error) error {
	if err == badger.ErrKeyNotFound || err == badger.ErrConflict {
		return err
	}
	return FatalError{Err: err}
}

// FatalError wraps a storage error that violates the engine's
// invariants (anything beyond a plain not-found/conflict). Such errors
// abort the process; FatalHandler is the process-boundary hook that
// decides how.
type FatalError struct{ Err error }

func (f FatalError) Error() string { return "storage: fatal: " + f.Err.Error() }
func (f FatalError) Unwrap() error { return f.Err }

// FatalHandler is invoked by the player indexer (internal/indexer) when
// loading or saving a user's status record fails. The default panics
// with the error; it is a variable so it can be replaced.
var FatalHandler = func(err error) {
	panic(err)
}
