// Package pipeline provides the worker runtime joining the conversation
// stages: typed unbounded queues, a cooperative queue worker, a worker shape
// that bridges a blocking body, and an interruptible worker that can abandon
// its in-flight item on barge-in.
package pipeline

import (
	"context"
	"errors"
	"sync"
)

// Worker is the common surface of every pipeline stage: Start launches the
// run loop, Terminate cancels it, AwaitDone blocks until the loop exited.
type Worker interface {
	Start(ctx context.Context)
	Terminate()
	AwaitDone()
}

// QueueWorker owns an input queue and a single run goroutine that dequeues
// items and dispatches them to the process callback. A failing item is logged
// and the loop continues; one bad item must not kill the worker.
type QueueWorker[In any] struct {
	in      *Queue[In]
	process func(context.Context, In) error

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewQueueWorker[In any](in *Queue[In], process func(context.Context, In) error) *QueueWorker[In] {
	return &QueueWorker[In]{
		in:      in,
		process: process,
		done:    make(chan struct{}),
	}
}

func (w *QueueWorker[In]) InputQueue() *Queue[In] { return w.in }

func (w *QueueWorker[In]) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		go w.runLoop(ctx)
	})
}

func (w *QueueWorker[In]) runLoop(ctx context.Context) {
	defer close(w.done)

	for {
		item, err := w.in.Dequeue(ctx)
		if err != nil {
			return
		}

		if err := w.process(ctx, item); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
			logger.Error("worker failed to process item", "error", err)
		}
	}
}

func (w *QueueWorker[In]) Terminate() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *QueueWorker[In]) AwaitDone() { <-w.done }

// BlockingWorker runs a blocking body on its own dedicated goroutine and
// bridges both directions through paired channels, so blocking SDK calls
// never stall the cooperative stages. The body observes termination through
// the closing of its input channel or by an in-band sentinel.
type BlockingWorker[In, Out any] struct {
	in  *Queue[In]
	out *Queue[Out]

	// runLoop is the blocking body. It must drain bridgedIn until the channel
	// closes and may push results to bridgedOut at any point.
	runLoop func(bridgedIn <-chan In, bridgedOut chan<- Out)

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	bridgedIn chan In
	done      chan struct{}
}

const bridgeCapacity = 16

func NewBlockingWorker[In, Out any](
	in *Queue[In],
	out *Queue[Out],
	runLoop func(bridgedIn <-chan In, bridgedOut chan<- Out),
) *BlockingWorker[In, Out] {
	return &BlockingWorker[In, Out]{
		in:        in,
		out:       out,
		runLoop:   runLoop,
		bridgedIn: make(chan In, bridgeCapacity),
		done:      make(chan struct{}),
	}
}

func (w *BlockingWorker[In, Out]) InputQueue() *Queue[In]   { return w.in }
func (w *BlockingWorker[In, Out]) OutputQueue() *Queue[Out] { return w.out }

func (w *BlockingWorker[In, Out]) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		bridgedOut := make(chan Out, bridgeCapacity)

		go w.forwardToBody(ctx)
		go w.forwardFromBody(bridgedOut)
		go func() {
			defer close(w.done)
			defer close(bridgedOut)
			w.runLoop(w.bridgedIn, bridgedOut)
		}()
	})
}

func (w *BlockingWorker[In, Out]) forwardToBody(ctx context.Context) {
	defer w.closeBridge()

	for {
		item, err := w.in.Dequeue(ctx)
		if err != nil {
			return
		}

		select {
		case w.bridgedIn <- item:
		case <-ctx.Done():
			return
		}
	}
}

func (w *BlockingWorker[In, Out]) forwardFromBody(bridgedOut <-chan Out) {
	for item := range bridgedOut {
		w.out.Enqueue(item)
	}
}

func (w *BlockingWorker[In, Out]) closeBridge() {
	w.closeOnce.Do(func() { close(w.bridgedIn) })
}

func (w *BlockingWorker[In, Out]) Terminate() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *BlockingWorker[In, Out]) AwaitDone() { <-w.done }
