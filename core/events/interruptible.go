// Package events defines the queued units of work that flow between pipeline
// stages: plain interruptible events and agent-response events that
// additionally carry a playback completion tracker.
//
// Interruption is modeled as a shared, set-once flag rather than an
// exception: every holder of an event can observe the flag, and a completed
// event can no longer be interrupted.
package events

import "sync/atomic"

// Interruptor is the part of an event's surface that an interrupter (usually
// the conversation, on detecting caller speech) needs to cut it off.
type Interruptor interface {
	Interrupt() bool
	IsInterrupted() bool
	IsInterruptable() bool
	MakeUninterruptable()
}

// Interruptible wraps a payload together with a one-way cancellation flag.
// The flag may be shared across several events so that one barge-in reaches
// all of them.
type Interruptible[P any] struct {
	Payload P

	interruptable atomic.Bool
	flag          *InterruptionFlag
}

type InterruptibleOption func(*interruptibleSettings)

type interruptibleSettings struct {
	interruptable bool
	flag          *InterruptionFlag
}

// WithUninterruptable marks the event as not cuttable; Interrupt becomes a
// no-op that reports false.
func WithUninterruptable() InterruptibleOption {
	return func(s *interruptibleSettings) { s.interruptable = false }
}

// WithInterruptionFlag shares an existing flag instead of allocating a fresh
// one.
func WithInterruptionFlag(flag *InterruptionFlag) InterruptibleOption {
	return func(s *interruptibleSettings) { s.flag = flag }
}

func NewInterruptible[P any](payload P, opts ...InterruptibleOption) *Interruptible[P] {
	settings := interruptibleSettings{interruptable: true}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.flag == nil {
		settings.flag = NewInterruptionFlag()
	}

	event := &Interruptible[P]{Payload: payload, flag: settings.flag}
	event.interruptable.Store(settings.interruptable)
	return event
}

// Interrupt sets the shared flag and reports true, unless the event is not
// (or no longer) interruptable, in which case the flag is left untouched.
func (e *Interruptible[P]) Interrupt() bool {
	if e == nil || !e.interruptable.Load() {
		return false
	}

	e.flag.Set()
	return true
}

func (e *Interruptible[P]) IsInterrupted() bool {
	return e != nil && e.interruptable.Load() && e.flag.IsSet()
}

func (e *Interruptible[P]) IsInterruptable() bool {
	return e != nil && e.interruptable.Load()
}

// MakeUninterruptable is called by workers once processing completed
// successfully so that late interruption attempts become no-ops.
func (e *Interruptible[P]) MakeUninterruptable() {
	if e != nil {
		e.interruptable.Store(false)
	}
}

// InterruptionFlagHandle exposes the shared flag so a supervisor can fan a
// single barge-in out to everything created from the same flag.
func (e *Interruptible[P]) InterruptionFlagHandle() *InterruptionFlag {
	if e == nil {
		return nil
	}

	return e.flag
}

// AgentResponse is an interruptible event that also carries a completion
// tracker: the playback side signals it once the corresponding audio has
// finished playing.
type AgentResponse[P any] struct {
	Interruptible[P]

	Tracker *CompletionTracker
}

func NewAgentResponse[P any](payload P, tracker *CompletionTracker, opts ...InterruptibleOption) *AgentResponse[P] {
	if tracker == nil {
		tracker = NewCompletionTracker()
	}

	settings := interruptibleSettings{interruptable: true}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.flag == nil {
		settings.flag = NewInterruptionFlag()
	}

	event := &AgentResponse[P]{Tracker: tracker}
	event.Payload = payload
	event.flag = settings.flag
	event.interruptable.Store(settings.interruptable)
	return event
}
