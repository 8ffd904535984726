// © 2025 opening-explorer authors. MIT License.

package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/storage"
	"github.com/opnexpl/openingexplorer/internal/upstream"
)

// TestPoolDrainsQueue submits three users, starts a pool of workers
// against an upstream stub that yields no games, and checks every ticket
// completes without the pool dropping work.
func TestPoolDrainsQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // no body: zero games for every user
	}))
	defer srv.Close()

	eng, err := storage.Open(storage.Config{Dir: t.TempDir(), Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer eng.Close()

	up := upstream.New(upstream.Config{BaseURL: srv.URL})
	runner := NewRunner(eng, up, zap.NewNop(), nil)
	queue := NewQueue[string](8)
	pool := NewPool(queue, runner, 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	var tickets []Ticket
	for _, user := range []string{"alice", "bob", "carol"} {
		ticket, err := queue.Submit(user)
		if err != nil {
			t.Fatalf("Submit(%q): %v", user, err)
		}
		tickets = append(tickets, ticket)
	}

	for i, ticket := range tickets {
		select {
		case <-ticket.Done():
		case <-time.After(5 * time.Second):
			t.Fatalf("ticket %d never completed", i)
		}
	}

	if n := queue.Len(); n != 0 {
		t.Fatalf("Len() after draining = %d, want 0", n)
	}
}

// TestPoolStopUnblocksIdleWorkers covers Stop's cooperative shutdown on an
// empty queue.
func TestPoolStopUnblocksIdleWorkers(t *testing.T) {
	eng, err := storage.Open(storage.Config{Dir: t.TempDir(), Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer eng.Close()

	up := upstream.New(upstream.Config{})
	runner := NewRunner(eng, up, zap.NewNop(), nil)
	queue := NewQueue[string](8)
	pool := NewPool(queue, runner, 3, zap.NewNop())

	pool.Start(context.Background())

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return; idle workers failed to exit")
	}
}
