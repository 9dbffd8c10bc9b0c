package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// CompletionTracker is a one-shot signal raised by the playback side once the
// audio for a given agent response has finished playing. It is never signaled
// for responses that were interrupted.
type CompletionTracker struct {
	signaled atomic.Bool
	once     sync.Once
	done     chan struct{}
}

func NewCompletionTracker() *CompletionTracker {
	return &CompletionTracker{done: make(chan struct{})}
}

func (t *CompletionTracker) Signal() {
	if t == nil {
		return
	}

	t.once.Do(func() {
		t.signaled.Store(true)
		close(t.done)
	})
}

func (t *CompletionTracker) IsSignaled() bool {
	return t != nil && t.signaled.Load()
}

func (t *CompletionTracker) Done() <-chan struct{} {
	return t.done
}

// Await blocks until the tracker is signaled or ctx is cancelled.
func (t *CompletionTracker) Await(ctx context.Context) error {
	if t == nil {
		return nil
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
