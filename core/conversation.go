// Package conversation assembles the full-duplex voice loop: microphone
// audio through noise cancellation into the recognizer, committed utterances
// through the agent, agent responses through synthesis onto the speaker. A
// caller speaking over the bot interrupts everything in flight; playback that
// was cut off repairs the transcript down to what was actually heard.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lariatvoice/lariat-core/core/actions"
	"github.com/lariatvoice/lariat-core/core/agent"
	"github.com/lariatvoice/lariat-core/core/events"
	"github.com/lariatvoice/lariat-core/core/noisecancel"
	"github.com/lariatvoice/lariat-core/core/pipeline"
	"github.com/lariatvoice/lariat-core/core/synthesizer"
	"github.com/lariatvoice/lariat-core/core/transcriber"
	"github.com/lariatvoice/lariat-core/core/transcript"
)

type Config struct {
	// ID identifies the conversation; generated when empty.
	ID string

	// ChunkSize is the synthesis chunk size in bytes; zero means one second
	// of output audio.
	ChunkSize int

	// BargeInOnInterims interrupts in-flight work on interim transcriptions
	// instead of waiting for the committed utterance.
	BargeInOnInterims bool

	// LowConfidenceThreshold, when positive, answers utterances recognized
	// below it with one of the agent's clarification prompts instead of a
	// full turn.
	LowConfidenceThreshold float64

	// IdleTimeout, when positive, cues a canned follow-up nudge after the
	// conversation has been silent this long.
	IdleTimeout time.Duration

	// TwilioSID and VonageUUID identify the caller leg for telephony
	// conversations; empty otherwise.
	TwilioSID  string
	VonageUUID string
}

// CannedAudioSource serves the pre-synthesized cue audio. synthesizer.Base
// implements it.
type CannedAudioSource interface {
	FillerAudio() (synthesizer.FillerAudio, bool)
	BackTrackingAudio() (synthesizer.FillerAudio, bool)
	FollowUpAudio(secondsSpoken float64) (synthesizer.FillerAudio, bool)
}

type Conversation struct {
	id     string
	config Config

	input      AudioInput
	output     AudioOutput
	recognizer Transcriber
	agent      *agent.Agent
	synth      synthesizer.Synthesizer
	canned     CannedAudioSource
	canceler   noisecancel.Canceler

	transcript *transcript.Transcript
	registry   eventRegistry

	playbackQueue       *pipeline.Queue[*playableItem]
	transcriptionWorker *pipeline.QueueWorker[transcriber.Transcription]
	responseWorker      *pipeline.QueueWorker[*events.AgentResponse[agent.Response]]
	playbackWorker      *pipeline.QueueWorker[*playableItem]

	mu               sync.Mutex
	botSecondsSpoken float64
	lastActivity     time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	stopped   chan struct{}
}

type Option func(*Conversation)

// WithAudioInput attaches a microphone; without one the caller feeds audio
// through SendAudio.
func WithAudioInput(input AudioInput) Option {
	return func(c *Conversation) { c.input = input }
}

func WithNoiseCanceler(canceler noisecancel.Canceler) Option {
	return func(c *Conversation) { c.canceler = canceler }
}

// WithCannedAudioSource overrides the canned cue source; by default the
// synthesizer is used when it implements CannedAudioSource.
func WithCannedAudioSource(source CannedAudioSource) Option {
	return func(c *Conversation) { c.canned = source }
}

func WithTranscriptEntryCallback(onEntry func(transcript.Entry)) Option {
	return func(c *Conversation) {
		c.transcript = transcript.New(transcript.WithEntryCallback(onEntry))
	}
}

func New(
	config Config,
	recognizer Transcriber,
	ag *agent.Agent,
	synth synthesizer.Synthesizer,
	output AudioOutput,
	opts ...Option,
) *Conversation {
	c := &Conversation{
		id:         config.ID,
		config:     config,
		recognizer: recognizer,
		agent:      ag,
		synth:      synth,
		output:     output,
		canceler:   noisecancel.Passthrough{},
		transcript: transcript.New(),

		playbackQueue: pipeline.NewQueue[*playableItem](),
		stopped:       make(chan struct{}),
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.canned == nil {
		if source, ok := synth.(CannedAudioSource); ok {
			c.canned = source
		}
	}

	c.transcriptionWorker = pipeline.NewQueueWorker(recognizer.OutputQueue(), c.processTranscription)
	c.responseWorker = pipeline.NewQueueWorker(ag.OutputQueue(), c.processResponse)
	c.playbackWorker = pipeline.NewQueueWorker(c.playbackQueue, c.playItem)

	ag.AttachTranscript(c.transcript)
	ag.OnEmit(c.registry.register)

	return c
}

func (c *Conversation) ID() string { return c.id }

func (c *Conversation) Transcript() *transcript.Transcript { return c.transcript }

// Start launches every stage and begins capture. It returns once the
// pipeline is running; the conversation ends on Stop or a stop response.
func (c *Conversation) Start(ctx context.Context) error {
	var startErr error
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)

		if err := c.recognizer.Start(ctx); err != nil {
			startErr = fmt.Errorf("failed to start recognizer: %w", err)
			c.cancel()
			return
		}

		c.agent.Start(ctx)
		c.transcriptionWorker.Start(ctx)
		c.responseWorker.Start(ctx)
		c.playbackWorker.Start(ctx)
		c.touchActivity()
		go c.monitorIdle(ctx)

		if c.input != nil {
			if err := c.input.Start(ctx, c.SendAudio); err != nil {
				startErr = fmt.Errorf("failed to start audio input: %w", err)
				c.Stop()
				return
			}
		}

		logger.Info("conversation started", "conversation_id", c.id)
	})
	return startErr
}

// SendAudio feeds one microphone chunk through noise cancellation into the
// recognizer. Telephony surfaces call this directly instead of attaching an
// AudioInput.
func (c *Conversation) SendAudio(chunk []byte) {
	c.recognizer.SendAudio(c.canceler.Process(chunk))
}

// SubmitActionResult reports a finished action back into the agent's turn
// loop. Quiet results only produce a transcript record.
func (c *Conversation) SubmitActionResult(
	actionInput actions.Input,
	actionOutput actions.Output,
	isQuiet bool,
) {
	event := events.NewInterruptible[agent.Input](agent.ActionResultInput{
		InputContext: c.inputContext(),
		ActionInput:  actionInput,
		ActionOutput: actionOutput,
		IsQuiet:      isQuiet,
	})
	c.registry.register(event)
	c.agent.InputQueue().Enqueue(event)
}

// Stop ends the conversation: workers are terminated, devices stopped, and
// the recognizer and synthesizer released. Idempotent.
func (c *Conversation) Stop() {
	c.stopOnce.Do(func() {
		logger.Info("conversation stopping", "conversation_id", c.id)

		if c.input != nil {
			if err := c.input.Stop(); err != nil {
				logger.Error("failed to stop audio input", "error", err)
			}
		}

		c.agent.Terminate()
		c.transcriptionWorker.Terminate()
		c.responseWorker.Terminate()
		c.playbackWorker.Terminate()
		if c.cancel != nil {
			c.cancel()
		}

		if err := c.recognizer.Close(); err != nil {
			logger.Error("failed to close recognizer", "error", err)
		}
		if err := c.synth.Teardown(context.Background()); err != nil {
			logger.Error("failed to tear down synthesizer", "error", err)
		}
		if err := c.output.Stop(); err != nil {
			logger.Error("failed to stop audio output", "error", err)
		}

		close(c.stopped)
	})
}

// AwaitDone blocks until the conversation has stopped.
func (c *Conversation) AwaitDone() { <-c.stopped }

func (c *Conversation) inputContext() agent.InputContext {
	return agent.InputContext{
		ConversationID: c.id,
		TwilioSID:      c.config.TwilioSID,
		VonageUUID:     c.config.VonageUUID,
	}
}

// processTranscription is the barge-in decision point: caller speech cuts
// off everything in flight, and committed utterances start agent turns.
func (c *Conversation) processTranscription(_ context.Context, t transcriber.Transcription) error {
	c.touchActivity()
	if t.Text == "" {
		return nil
	}

	if t.IsFinal || c.config.BargeInOnInterims {
		if interrupted := c.registry.interruptAll(); interrupted > 0 {
			logger.Debug("caller speech interrupted in-flight events",
				"conversation_id", c.id, "interrupted", interrupted)
		}
		c.agent.CancelCurrent()
	}
	if !t.IsFinal {
		return nil
	}

	if c.config.LowConfidenceThreshold > 0 && t.Confidence < c.config.LowConfidenceThreshold {
		if prompt := c.agent.LowConfidenceResponse(); prompt.Text != "" {
			logger.Debug("answering low-confidence utterance with a clarification prompt",
				"conversation_id", c.id, "confidence", t.Confidence)
			c.transcript.AddHumanMessage(t.Text, c.id, t.Confidence)
			event := pipeline.EmitAgentResponse(
				c.agent.OutputQueue(),
				agent.Response(agent.MessageResponse{Message: prompt, IsInterruptable: true}),
				nil,
			)
			c.registry.register(event)
			return nil
		}
	}

	event := events.NewInterruptible[agent.Input](agent.TranscriptionInput{
		InputContext:  c.inputContext(),
		Transcription: t,
	})
	c.registry.register(event)
	c.agent.InputQueue().Enqueue(event)
	return nil
}

func (c *Conversation) chunkSize() int {
	if c.config.ChunkSize > 0 {
		return c.config.ChunkSize
	}
	return c.synth.Config().Encoding.BytesPerSecond()
}

func (c *Conversation) touchActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Conversation) addBotSeconds(seconds float64) {
	c.mu.Lock()
	c.botSecondsSpoken += seconds
	c.mu.Unlock()
}

// BotSecondsSpoken is the total playback time of bot audio so far.
func (c *Conversation) BotSecondsSpoken() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botSecondsSpoken
}

// monitorIdle cues a follow-up nudge when nothing has happened for the
// configured timeout.
func (c *Conversation) monitorIdle(ctx context.Context) {
	if c.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		idle := time.Since(c.lastActivity)
		c.mu.Unlock()
		if idle < c.config.IdleTimeout {
			continue
		}

		logger.Debug("conversation idle, cueing follow-up", "conversation_id", c.id)
		event := pipeline.EmitAgentResponse(
			c.agent.OutputQueue(),
			agent.Response(agent.FollowUpAudioResponse{SecondsSpoken: c.BotSecondsSpoken()}),
			nil,
		)
		c.registry.register(event)
		c.touchActivity()
	}
}
