// Package transcriber turns an incoming stream of audio byte-chunks into a
// stream of transcription events. Concrete recognizers (see the deepgram
// subpackage) embed Base, which owns the queues, mute handling, and the
// optional side modules: interrupt classification, back-tracking detection,
// voice-activity gating, and context tracking.
package transcriber

import (
	"context"
	"sync/atomic"

	"github.com/lariatvoice/lariat-core/core/audio"
	"github.com/lariatvoice/lariat-core/core/pipeline"
)

type Config struct {
	Encoding audio.EncodingInfo

	// InterruptOnBlockers enables the interrupt-intent classifier.
	InterruptOnBlockers bool
	// SkipOnBackTrackAudio enables the back-tracking classifier; matched
	// utterances are suppressed instead of triggering a full agent turn.
	SkipOnBackTrackAudio bool

	// VoiceActivityDetector, when set, gates whether live chunks are
	// forwarded at all. Muted silence always passes to preserve timing.
	VoiceActivityDetector VoiceActivityDetector
	// ContextTracker, when set, observes final transcriptions.
	ContextTracker ContextTracker
}

type Base struct {
	config Config

	in  *pipeline.Queue[[]byte]
	out *pipeline.Queue[Transcription]

	muted atomic.Bool
	ready atomic.Bool

	interruptClassifier    *PhraseClassifier
	backTrackingClassifier *PhraseClassifier
}

func NewBase(ctx context.Context, config Config) *Base {
	if config.Encoding.IsZero() {
		config.Encoding = audio.GetDefaultEncodingInfo()
	}

	b := &Base{
		config: config,
		in:     pipeline.NewQueue[[]byte](),
		out:    pipeline.NewQueue[Transcription](),
	}
	b.ready.Store(true)

	// Sub-model initialization runs off the ingest path; SendAudio must not
	// block on readiness.
	if config.InterruptOnBlockers {
		b.interruptClassifier = DefaultInterruptClassifier()
		go b.initializeClassifier(ctx, b.interruptClassifier, "interrupt")
	}
	if config.SkipOnBackTrackAudio {
		b.backTrackingClassifier = DefaultBackTrackingClassifier()
		go b.initializeClassifier(ctx, b.backTrackingClassifier, "back-tracking")
	}

	return b
}

func (b *Base) initializeClassifier(ctx context.Context, classifier *PhraseClassifier, name string) {
	if err := classifier.Initialize(ctx); err != nil {
		logger.Error("failed to initialize transcription classifier", "classifier", name, "error", err)
	}
}

func (b *Base) Config() Config { return b.config }

func (b *Base) InputQueue() *pipeline.Queue[[]byte]         { return b.in }
func (b *Base) OutputQueue() *pipeline.Queue[Transcription] { return b.out }

func (b *Base) Mute()         { b.muted.Store(true) }
func (b *Base) Unmute()       { b.muted.Store(false) }
func (b *Base) IsMuted() bool { return b.muted.Load() }

// Ready reports whether the recognizer accepts audio. Implementations that
// need a connection handshake flip it through SetReady.
func (b *Base) Ready() bool         { return b.ready.Load() }
func (b *Base) SetReady(ready bool) { b.ready.Store(ready) }

// SendAudio ingests one chunk without blocking. While muted, the chunk is
// replaced by encoding-correct silence of equal length so downstream timing
// is preserved.
func (b *Base) SendAudio(chunk []byte) {
	if b.IsMuted() {
		b.in.Enqueue(b.config.Encoding.SilentChunk(len(chunk)))
		return
	}

	if vad := b.config.VoiceActivityDetector; vad != nil && !vad.IsSpeech(chunk) {
		return
	}

	b.in.Enqueue(chunk)
}

// EmitTranscription runs the side modules over a recognition result and
// publishes it. Back-tracking acknowledgements are suppressed; interrupt
// intents are tagged.
func (b *Base) EmitTranscription(transcription Transcription) {
	if transcription.IsFinal && b.backTrackingClassifier.Matches(transcription.Text) {
		logger.Debug("suppressing back-tracking acknowledgement", "text", transcription.Text)
		return
	}

	if b.interruptClassifier.Matches(transcription.Text) {
		transcription.IsInterrupt = true
	}

	if transcription.IsFinal && b.config.ContextTracker != nil {
		b.config.ContextTracker.ObserveFinalTranscription(transcription)
	}

	b.out.Enqueue(transcription)
}
