package conversation

import (
	"context"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lariatvoice/lariat-core/core/agent"
	"github.com/lariatvoice/lariat-core/core/audio"
	"github.com/lariatvoice/lariat-core/core/message"
	"github.com/lariatvoice/lariat-core/core/synthesizer"
	"github.com/lariatvoice/lariat-core/core/transcriber"
	"github.com/lariatvoice/lariat-core/core/transcript"
)

var testEncoding = audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}

type fakeTranscriber struct {
	*transcriber.Base
}

func newFakeTranscriber(t *testing.T) *fakeTranscriber {
	t.Helper()
	return &fakeTranscriber{Base: transcriber.NewBase(context.Background(), transcriber.Config{
		Encoding: testEncoding,
	})}
}

func (f *fakeTranscriber) Start(context.Context) error { return nil }
func (f *fakeTranscriber) Close() error                { return nil }

type fakeOutput struct {
	mu     sync.Mutex
	played []byte
	chunks int

	// gate, when set, blocks each Play call until a token is received.
	gate chan struct{}
}

func (f *fakeOutput) Play(ctx context.Context, chunk []byte) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	f.played = append(f.played, chunk...)
	f.chunks++
	f.mu.Unlock()
	return nil
}

func (f *fakeOutput) Stop() error { return nil }

func (f *fakeOutput) playedBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

// fakeSynth renders every message as one second of audio so playback-time
// math is predictable.
type fakeSynth struct {
	*synthesizer.Base
}

func newFakeSynth(t *testing.T) *fakeSynth {
	t.Helper()
	base, err := synthesizer.NewBase(synthesizer.Config{Type: "fake", Encoding: testEncoding})
	if err != nil {
		t.Fatalf("failed to create synthesizer base: %v", err)
	}
	return &fakeSynth{Base: base}
}

func (f *fakeSynth) CreateSpeech(
	_ context.Context,
	msg message.Message,
	chunkSize int,
) (*synthesizer.SynthesisResult, error) {
	pcm := make([]byte, testEncoding.BytesPerSecond())
	return f.ResultFromWAV(audio.EncodeWAV(pcm, testEncoding.SampleRate), msg, chunkSize)
}

type echoStreamer struct{ reply string }

func (e echoStreamer) GenerateResponse(
	context.Context, string, string, bool, float64,
) iter.Seq2[agent.StreamedItem, error] {
	return func(yield func(agent.StreamedItem, error) bool) {
		yield(agent.StreamedItem{Text: e.reply, IsInterruptable: true}, nil)
	}
}

func newTestConversation(
	t *testing.T,
	config Config,
	ag *agent.Agent,
	opts ...Option,
) (*Conversation, *fakeTranscriber, *fakeOutput) {
	t.Helper()

	recognizer := newFakeTranscriber(t)
	output := &fakeOutput{}
	c := New(config, recognizer, ag, newFakeSynth(t), output, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(c.Stop)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("failed to start conversation: %v", err)
	}
	return c, recognizer, output
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !condition() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestConversationSpeaksAgentReply(t *testing.T) {
	ag := agent.New(
		agent.Config{Type: "echo", GenerateResponses: true, AllowAgentToBeCutOff: true},
		agent.WithStreamingResponder(echoStreamer{reply: "Hello to you too."}),
	)
	c, recognizer, output := newTestConversation(t, Config{ChunkSize: 4000}, ag)

	recognizer.EmitTranscription(transcriber.Transcription{
		Text: "hello there", Confidence: 0.95, IsFinal: true,
	})

	waitFor(t, "the reply to play", func() bool {
		return output.playedBytes() == testEncoding.BytesPerSecond()
	})

	entries := c.Transcript().Entries()
	if len(entries) != 2 {
		t.Fatalf("expected a human and a bot entry, got %v", entries)
	}
	if entries[0].Kind != transcript.EntryKindHumanMessage || entries[0].Text != "hello there" {
		t.Errorf("expected the caller utterance first, got %+v", entries[0])
	}
	if entries[1].Kind != transcript.EntryKindBotMessage || entries[1].Text != "Hello to you too." {
		t.Errorf("expected the full bot reply, got %+v", entries[1])
	}

	if got := c.BotSecondsSpoken(); got < 0.99 || got > 1.01 {
		t.Errorf("expected one second of bot audio accounted, got %v", got)
	}
}

func TestBargeInCutsPlaybackAndRepairsTranscript(t *testing.T) {
	ag := agent.New(
		agent.Config{Type: "echo", GenerateResponses: true, AllowAgentToBeCutOff: true},
		agent.WithStreamingResponder(echoStreamer{reply: "This is a fairly long reply that will be cut off."}),
	)

	recognizer := newFakeTranscriber(t)
	output := &fakeOutput{gate: make(chan struct{})}
	c := New(Config{ChunkSize: 8000, BargeInOnInterims: true}, recognizer, ag, newFakeSynth(t), output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer c.Stop()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("failed to start conversation: %v", err)
	}

	recognizer.EmitTranscription(transcriber.Transcription{
		Text: "say something long", Confidence: 0.95, IsFinal: true,
	})

	// Let the first of the four chunks play, then barge in with an interim
	// while the next chunk is held at the gate.
	output.gate <- struct{}{}
	waitFor(t, "the first chunk to play", func() bool { return output.playedBytes() == 8000 })

	recognizer.EmitTranscription(transcriber.Transcription{
		Text: "stop right there", Confidence: 0.6, IsFinal: false,
	})
	time.Sleep(50 * time.Millisecond)
	close(output.gate)

	waitFor(t, "the bot entry to be repaired", func() bool {
		entries := c.Transcript().Entries()
		for _, entry := range entries {
			if entry.Kind == transcript.EntryKindBotMessage {
				return entry.Text != "This is a fairly long reply that will be cut off."
			}
		}
		return false
	})

	var botText string
	for _, entry := range c.Transcript().Entries() {
		if entry.Kind == transcript.EntryKindBotMessage {
			botText = entry.Text
		}
	}
	if botText == "" {
		t.Fatal("expected a repaired bot entry, not an empty one")
	}
	if !strings.HasPrefix("This is a fairly long reply that will be cut off.", botText) {
		t.Fatalf("expected the repaired entry to be a prefix of the reply, got %q", botText)
	}

	// At most the chunk already committed to the device plays out after the
	// barge-in; the rest of the second of audio never does.
	if got := output.playedBytes(); got != 8000 && got != 16000 {
		t.Errorf("expected playback to stop after the barge-in, got %d bytes", got)
	}
}

func TestStopResponseEndsConversationAfterPlayback(t *testing.T) {
	responder := &stopResponder{}
	ag := agent.New(
		agent.Config{Type: "echo"},
		agent.WithResponder(responder),
	)
	c, recognizer, output := newTestConversation(t, Config{ChunkSize: 8000}, ag)

	recognizer.EmitTranscription(transcriber.Transcription{
		Text: "please hang up", Confidence: 0.95, IsFinal: true,
	})

	done := make(chan struct{})
	go func() {
		c.AwaitDone()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the conversation to stop after the farewell")
	}

	if output.playedBytes() != testEncoding.BytesPerSecond() {
		t.Errorf("expected the farewell to finish playing before the stop, got %d bytes",
			output.playedBytes())
	}
}

type stopResponder struct{}

func (stopResponder) Respond(context.Context, string, string, bool) (string, bool, error) {
	return "Goodbye!", true, nil
}

func TestFillerAudioPlaysCannedCue(t *testing.T) {
	ag := agent.New(
		agent.Config{Type: "echo", GenerateResponses: true, SendFillerAudio: true},
		agent.WithStreamingResponder(echoStreamer{reply: "Here is your answer."}),
	)

	recognizer := newFakeTranscriber(t)
	output := &fakeOutput{}
	synth := newFakeSynth(t)
	if err := synth.SetFillerAudios([]synthesizer.FillerAudio{{
		Message:   message.New("Um..."),
		AudioData: []byte{1, 2, 3, 4},
		ChunkSize: 4,
	}}); err != nil {
		t.Fatalf("failed to set filler audios: %v", err)
	}

	c := New(Config{ChunkSize: 8000}, recognizer, ag, synth, output)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer c.Stop()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("failed to start conversation: %v", err)
	}

	recognizer.EmitTranscription(transcriber.Transcription{
		Text: "question", Confidence: 0.95, IsFinal: true,
	})

	// Canned filler (4 bytes) plus the synthesized reply (one second).
	waitFor(t, "filler and reply to play", func() bool {
		return output.playedBytes() == 4+testEncoding.BytesPerSecond()
	})

	output.mu.Lock()
	first4 := output.played[:4]
	output.mu.Unlock()
	for i, byt := range first4 {
		if byt != byte(i+1) {
			t.Fatalf("expected the canned cue to play first, got %v", first4)
		}
	}
}

func TestLowConfidenceUtteranceGetsClarificationPrompt(t *testing.T) {
	ag := agent.New(
		agent.Config{
			Type:                   "echo",
			GenerateResponses:      true,
			LowConfidenceResponses: []message.Message{message.New("Sorry, could you repeat that?")},
		},
		agent.WithStreamingResponder(echoStreamer{reply: "full turn reply"}),
	)
	c, recognizer, output := newTestConversation(t,
		Config{ChunkSize: 8000, LowConfidenceThreshold: 0.5}, ag)

	recognizer.EmitTranscription(transcriber.Transcription{
		Text: "mumble mumble", Confidence: 0.2, IsFinal: true,
	})

	waitFor(t, "the clarification prompt to play", func() bool {
		return output.playedBytes() == testEncoding.BytesPerSecond()
	})

	var botText string
	for _, entry := range c.Transcript().Entries() {
		if entry.Kind == transcript.EntryKindBotMessage {
			botText = entry.Text
		}
	}
	if botText != "Sorry, could you repeat that?" {
		t.Fatalf("expected the clarification prompt, got %q", botText)
	}

	if got := ag.InputQueue().Len(); got != 0 {
		t.Errorf("expected no agent turn for a low-confidence utterance, found %d queued", got)
	}
}

func TestEmptyTranscriptionsAreIgnored(t *testing.T) {
	ag := agent.New(
		agent.Config{Type: "echo", GenerateResponses: true},
		agent.WithStreamingResponder(echoStreamer{reply: "reply"}),
	)
	c, recognizer, output := newTestConversation(t, Config{ChunkSize: 8000}, ag)

	recognizer.EmitTranscription(transcriber.Transcription{Text: "", IsFinal: true})

	time.Sleep(50 * time.Millisecond)
	if output.playedBytes() != 0 {
		t.Fatal("expected no playback for an empty transcription")
	}
	if entries := c.Transcript().Entries(); len(entries) != 0 {
		t.Fatalf("expected no transcript entries, got %v", entries)
	}
}
