package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueuePreservesFIFOOrder(t *testing.T) {
	q := NewQueue[int]()
	for i := range 5 {
		q.Enqueue(i)
	}

	ctx := context.Background()
	for i := range 5 {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("unexpected dequeue error: %v", err)
		}
		if got != i {
			t.Fatalf("expected item %d, got %d", i, got)
		}
	}
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue[string]()
	got := make(chan string, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			return
		}
		got <- item
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue("late")

	select {
	case item := <-got:
		if item != "late" {
			t.Fatalf("expected %q, got %q", "late", item)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for blocked dequeue to resolve")
	}
}

func TestQueueDequeueHonorsContextCancellation(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestQueueCloseDrainsPendingItems(t *testing.T) {
	q := NewQueue[int]()
	q.Enqueue(1)
	q.Close()
	q.Enqueue(2) // ignored after close

	ctx := context.Background()
	item, err := q.Dequeue(ctx)
	if err != nil || item != 1 {
		t.Fatalf("expected pending item 1, got %d (err %v)", item, err)
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueTryDequeue(t *testing.T) {
	q := NewQueue[int]()
	if _, ok := q.TryDequeue(); ok {
		t.Fatal("expected TryDequeue on an empty queue to report false")
	}

	q.Enqueue(7)
	if q.Len() != 1 {
		t.Fatalf("expected length 1, got %d", q.Len())
	}
	item, ok := q.TryDequeue()
	if !ok || item != 7 {
		t.Fatalf("expected item 7, got %d (ok %t)", item, ok)
	}
}
