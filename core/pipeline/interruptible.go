package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/lariatvoice/lariat-core/core/events"
)

// defaultMaxConcurrency is the declared in-flight ceiling. The run loop
// currently processes one event at a time; the ceiling is validated and kept
// as the upper bound a future loop may use.
const defaultMaxConcurrency = 2

// InterruptibleWorker processes one interruptible event at a time. Events
// observed as already interrupted are dropped before processing begins; the
// in-flight item can be abandoned through CancelCurrent while it is still
// marked interruptable; a successfully processed event is made
// uninterruptable so late barge-ins are no-ops.
type InterruptibleWorker[E events.Interruptor] struct {
	in      *Queue[E]
	process func(context.Context, E) error

	maxConcurrency int

	mu            sync.Mutex
	currentEvent  E
	currentCancel context.CancelFunc
	inFlight      bool

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type InterruptibleWorkerOption func(*interruptibleWorkerSettings)

type interruptibleWorkerSettings struct {
	maxConcurrency int
}

// WithMaxConcurrency sets the declared in-flight ceiling (default 2).
func WithMaxConcurrency(n int) InterruptibleWorkerOption {
	return func(s *interruptibleWorkerSettings) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

func NewInterruptibleWorker[E events.Interruptor](
	in *Queue[E],
	process func(context.Context, E) error,
	opts ...InterruptibleWorkerOption,
) *InterruptibleWorker[E] {
	settings := interruptibleWorkerSettings{maxConcurrency: defaultMaxConcurrency}
	for _, opt := range opts {
		opt(&settings)
	}

	return &InterruptibleWorker[E]{
		in:             in,
		process:        process,
		maxConcurrency: settings.maxConcurrency,
		done:           make(chan struct{}),
	}
}

func (w *InterruptibleWorker[E]) InputQueue() *Queue[E] { return w.in }

func (w *InterruptibleWorker[E]) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		go w.runLoop(ctx)
	})
}

func (w *InterruptibleWorker[E]) runLoop(ctx context.Context) {
	defer close(w.done)

	for {
		event, err := w.in.Dequeue(ctx)
		if err != nil {
			return
		}
		if event.IsInterrupted() {
			continue
		}

		processCtx, cancelProcess := context.WithCancel(ctx)
		w.setCurrent(event, cancelProcess)

		err = w.process(processCtx, event)
		cancelProcess()
		w.clearCurrent()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				if ctx.Err() != nil {
					return
				}
				// The in-flight task was abandoned by a barge-in; the event
				// stays interruptable and the loop moves on.
				continue
			}
			// A failed event is not hardened either; only successful
			// processing makes it immune to late barge-ins.
			logger.Error("interruptible worker failed to process event", "error", err)
			continue
		}

		event.MakeUninterruptable()
	}
}

func (w *InterruptibleWorker[E]) setCurrent(event E, cancel context.CancelFunc) {
	w.mu.Lock()
	w.currentEvent = event
	w.currentCancel = cancel
	w.inFlight = true
	w.mu.Unlock()
}

func (w *InterruptibleWorker[E]) clearCurrent() {
	var zero E
	w.mu.Lock()
	w.currentEvent = zero
	w.currentCancel = nil
	w.inFlight = false
	w.mu.Unlock()
}

// CancelCurrent abandons the in-flight task, but only while its event is
// still marked interruptable. It reports whether a cancellation was issued.
func (w *InterruptibleWorker[E]) CancelCurrent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.inFlight || w.currentCancel == nil || !w.currentEvent.IsInterruptable() {
		return false
	}

	w.currentCancel()
	return true
}

func (w *InterruptibleWorker[E]) Terminate() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *InterruptibleWorker[E]) AwaitDone() { <-w.done }

// Emit wraps payload in a fresh interruptible event and enqueues it on out.
// The created event is returned so callers can register it for barge-in.
func Emit[P any](out *Queue[*events.Interruptible[P]], payload P, opts ...events.InterruptibleOption) *events.Interruptible[P] {
	event := events.NewInterruptible(payload, opts...)
	out.Enqueue(event)
	return event
}

// EmitAgentResponse wraps payload in an agent-response event, creating a
// completion tracker when none is supplied, and enqueues it on out.
func EmitAgentResponse[P any](
	out *Queue[*events.AgentResponse[P]],
	payload P,
	tracker *events.CompletionTracker,
	opts ...events.InterruptibleOption,
) *events.AgentResponse[P] {
	event := events.NewAgentResponse(payload, tracker, opts...)
	out.Enqueue(event)
	return event
}
