// © 2025 opening-explorer authors. MIT License.

package indexer

// pool.go implements the fixed pool of indexer workers: each worker
// repeatedly pops a user id in strict
// FIFO order and runs IndexPlayer, cooperatively, with no work
// stealing, supervised by golang.org/x/sync/errgroup.

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the default size of the indexer worker pool.
const DefaultWorkers = 8

// Pool runs Workers goroutines pulling from a Queue[string] and running
// IndexPlayer via a Runner, until Stop is called or ctx is canceled.
type Pool struct {
	queue   *Queue[string]
	runner  *Runner
	workers int
	logger  *zap.Logger

	stop chan struct{}
	grp  *errgroup.Group
}

// NewPool builds a pool of workers indexer workers (DefaultWorkers if
// workers <= 0) draining queue via runner.
func NewPool(queue *Queue[string], runner *Runner, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{queue: queue, runner: runner, workers: workers, logger: logger, stop: make(chan struct{})}
}

// Start launches the worker goroutines. Call Stop (and optionally Wait)
// to shut the pool down.
func (p *Pool) Start(ctx context.Context) {
	grp, ctx := errgroup.WithContext(ctx)
	p.grp = grp
	for i := 0; i < p.workers; i++ {
		grp.Go(func() error {
			p.runWorker(ctx)
			return nil
		})
	}
}

func (p *Pool) runWorker(ctx context.Context) {
	for {
		user, ok := p.queue.Acquire(p.stop)
		if !ok {
			return
		}
		if ctx.Err() != nil {
			p.queue.Complete(user)
			return
		}
		p.runner.IndexPlayer(ctx, user)
		p.queue.Complete(user)
	}
}

// Stop signals every worker to exit once it next checks for work, and
// blocks until they have all returned.
func (p *Pool) Stop() {
	close(p.stop)
	if p.grp != nil {
		p.grp.Wait()
	}
}
