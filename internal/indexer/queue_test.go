// © 2025 opening-explorer authors. MIT License.

package indexer

import (
	"testing"
)

// TestQueueFIFOOrder covers the strict FIFO Acquire order.
func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue[string](8)
	for _, user := range []string{"a", "b", "c"} {
		if _, err := q.Submit(user); err != nil {
			t.Fatalf("Submit(%q): %v", user, err)
		}
	}

	stop := make(chan struct{})
	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Acquire(stop)
		if !ok || got != want {
			t.Fatalf("Acquire = (%q, %v), want (%q, true)", got, ok, want)
		}
		q.Complete(got)
	}
}

// TestQueueSubmitDedup covers the "second submission returns the existing
// ticket" contract.
func TestQueueSubmitDedup(t *testing.T) {
	q := NewQueue[string](8)
	t1, err := q.Submit("a")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	t2, err := q.Submit("a")
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if t1.Done() != t2.Done() {
		t.Fatal("second Submit returned a distinct ticket, want the existing one")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (deduplicated)", q.Len())
	}
}

// TestQueueSubmitFullReturnsErrQueueFull exercises the capacity bound.
func TestQueueSubmitFullReturnsErrQueueFull(t *testing.T) {
	q := NewQueue[string](2)
	if _, err := q.Submit("a"); err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	if _, err := q.Submit("b"); err != nil {
		t.Fatalf("Submit b: %v", err)
	}
	_, err := q.Submit("c")
	if _, ok := err.(ErrQueueFull[string]); !ok {
		t.Fatalf("Submit c: got %v (%T), want ErrQueueFull", err, err)
	}
}

// TestQueuePrecedingTicketsSaturatesAtZero covers the saturating-at-zero
// arithmetic behind the queue-position counter.
func TestQueuePrecedingTicketsSaturatesAtZero(t *testing.T) {
	q := NewQueue[string](8)
	ta, _ := q.Submit("a")
	tb, _ := q.Submit("b")
	tc, _ := q.Submit("c")

	if n := q.PrecedingTickets(tc); n != 2 {
		t.Fatalf("PrecedingTickets(tc) = %d, want 2", n)
	}

	stop := make(chan struct{})
	got, ok := q.Acquire(stop)
	if !ok || got != "a" {
		t.Fatalf("Acquire = (%q, %v), want (a, true)", got, ok)
	}
	q.Complete(got)

	if n := q.PrecedingTickets(tb); n != 1 {
		t.Fatalf("PrecedingTickets(tb) after popping a = %d, want 1 (b's number 1 minus last popped number 0)", n)
	}
	if n := q.PrecedingTickets(ta); n != 0 {
		t.Fatalf("PrecedingTickets(ta) = %d, want 0 (saturates, already popped)", n)
	}
}

// TestQueueCompleteClosesTicket covers Complete's "every subscriber's
// Done() unblocks" contract.
func TestQueueCompleteClosesTicket(t *testing.T) {
	q := NewQueue[string](8)
	ticket, _ := q.Submit("a")

	select {
	case <-ticket.Done():
		t.Fatal("ticket already done before Complete")
	default:
	}

	q.Complete("a")

	select {
	case <-ticket.Done():
	default:
		t.Fatal("ticket not done after Complete")
	}
}

// TestQueueAcquireStopUnblocks covers Acquire's cooperative shutdown: a
// closed stop channel releases a worker blocked on an empty queue.
func TestQueueAcquireStopUnblocks(t *testing.T) {
	q := NewQueue[string](8)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_, ok := q.Acquire(stop)
		if ok {
			t.Error("Acquire returned ok=true on an empty, stopped queue")
		}
		close(done)
	}()
	close(stop)
	<-done
}
