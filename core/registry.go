package conversation

import (
	"sync"

	"github.com/lariatvoice/lariat-core/core/events"
)

// eventRegistry tracks every interruptible event the conversation has put in
// flight, so one barge-in reaches all of them. Completed events harden
// themselves; a sweep drops them to keep the registry small.
type eventRegistry struct {
	mu     sync.Mutex
	events []events.Interruptor
}

func (r *eventRegistry) register(event events.Interruptor) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// interruptAll cuts off everything still interruptable and reports how many
// events accepted the interrupt.
func (r *eventRegistry) interruptAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	interrupted := 0
	kept := r.events[:0]
	for _, event := range r.events {
		if event.Interrupt() {
			interrupted++
		}
		if event.IsInterruptable() && !event.IsInterrupted() {
			kept = append(kept, event)
		}
	}
	r.events = kept
	return interrupted
}

// sweep drops events that already completed or were interrupted.
func (r *eventRegistry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	for _, event := range r.events {
		if event.IsInterruptable() && !event.IsInterrupted() {
			kept = append(kept, event)
		}
	}
	r.events = kept
}
