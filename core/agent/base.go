// Package agent turns committed transcriptions and action results into
// response streams. One turn at a time flows through an interruptible worker:
// the transcript is appended, goodbye detection is forked, filler audio is
// cued, the model is consulted, and any trailing function call is dispatched
// onto the actions queue.
package agent

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/lariatvoice/lariat-core/core/actions"
	"github.com/lariatvoice/lariat-core/core/events"
	"github.com/lariatvoice/lariat-core/core/message"
	"github.com/lariatvoice/lariat-core/core/pipeline"
	"github.com/lariatvoice/lariat-core/core/transcript"
)

type Agent struct {
	config Config

	responder          Responder
	streamingResponder StreamingResponder

	actionFactory actions.Factory
	goodbye       GoodbyeDetector

	in      *pipeline.Queue[*events.Interruptible[Input]]
	out     *pipeline.Queue[*events.AgentResponse[Response]]
	actions *pipeline.Queue[*events.Interruptible[actions.Input]]
	worker  *pipeline.InterruptibleWorker[*events.Interruptible[Input]]

	transcript *transcript.Transcript
	muted      atomic.Bool

	// onEmit lets the conversation register every produced event for
	// barge-in before anything downstream can pick it up.
	onEmit func(events.Interruptor)

	spanNameOnce   sync.Once
	cachedSpanName string
}

type Option func(*Agent)

func WithResponder(responder Responder) Option {
	return func(a *Agent) { a.responder = responder }
}

func WithStreamingResponder(responder StreamingResponder) Option {
	return func(a *Agent) { a.streamingResponder = responder }
}

func WithActionFactory(factory actions.Factory) Option {
	return func(a *Agent) { a.actionFactory = factory }
}

func WithGoodbyeDetector(detector GoodbyeDetector) Option {
	return func(a *Agent) { a.goodbye = detector }
}

// WithEmitHook registers an observer for every event the agent enqueues,
// response and action alike.
func WithEmitHook(onEmit func(events.Interruptor)) Option {
	return func(a *Agent) { a.onEmit = onEmit }
}

// OnEmit sets the emit observer after construction; the conversation wires
// itself in through this. Must be called before Start.
func (a *Agent) OnEmit(onEmit func(events.Interruptor)) { a.onEmit = onEmit }

func New(config Config, opts ...Option) *Agent {
	a := &Agent{
		config:  config,
		in:      pipeline.NewQueue[*events.Interruptible[Input]](),
		out:     pipeline.NewQueue[*events.AgentResponse[Response]](),
		actions: pipeline.NewQueue[*events.Interruptible[actions.Input]](),
	}
	for _, opt := range opts {
		opt(a)
	}

	if config.EndConversationOnGoodbye && a.goodbye == nil {
		a.goodbye = NewPhraseGoodbyeDetector()
	}

	a.worker = pipeline.NewInterruptibleWorker(a.in, a.process)
	return a
}

func (a *Agent) Config() Config { return a.config }

func (a *Agent) InputQueue() *pipeline.Queue[*events.Interruptible[Input]]     { return a.in }
func (a *Agent) OutputQueue() *pipeline.Queue[*events.AgentResponse[Response]] { return a.out }

// ActionsQueue is consumed by the external action executor.
func (a *Agent) ActionsQueue() *pipeline.Queue[*events.Interruptible[actions.Input]] {
	return a.actions
}

// AttachTranscript hands the agent the conversation-owned transcript; it must
// be called before the first input arrives.
func (a *Agent) AttachTranscript(t *transcript.Transcript) { a.transcript = t }

func (a *Agent) Mute()         { a.muted.Store(true) }
func (a *Agent) Unmute()       { a.muted.Store(false) }
func (a *Agent) IsMuted() bool { return a.muted.Load() }

func (a *Agent) Start(ctx context.Context) { a.worker.Start(ctx) }
func (a *Agent) Terminate()                { a.worker.Terminate() }
func (a *Agent) AwaitDone()                { a.worker.AwaitDone() }

// CancelCurrent abandons the in-flight turn if it is still interruptable.
func (a *Agent) CancelCurrent() bool { return a.worker.CancelCurrent() }

// CutOffResponse picks what to say when resuming after a barge-in.
func (a *Agent) CutOffResponse() message.Message { return pickRandom(a.config.CutOffResponses) }

// LowConfidenceResponse picks a clarification prompt for poorly recognized
// input.
func (a *Agent) LowConfidenceResponse() message.Message {
	return pickRandom(a.config.LowConfidenceResponses)
}

func pickRandom(messages []message.Message) message.Message {
	if len(messages) == 0 {
		return message.Message{}
	}
	return messages[rand.IntN(len(messages))]
}

func (a *Agent) emitResponse(
	response Response,
	tracker *events.CompletionTracker,
	opts ...events.InterruptibleOption,
) *events.AgentResponse[Response] {
	event := pipeline.EmitAgentResponse(a.out, response, tracker, opts...)
	if a.onEmit != nil {
		a.onEmit(event)
	}
	return event
}

func (a *Agent) emitAction(input actions.Input, opts ...events.InterruptibleOption) {
	event := pipeline.Emit(a.actions, input, opts...)
	if a.onEmit != nil {
		a.onEmit(event)
	}
}

func (a *Agent) actionConfig(actionType string) (actions.Config, bool) {
	for _, config := range a.config.Actions {
		if config.Type == actionType {
			return config, true
		}
	}
	return actions.Config{}, false
}
