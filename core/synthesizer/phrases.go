package synthesizer

import "github.com/lariatvoice/lariat-core/core/message"

// Canned phrase sets synthesized once at conversation start so playback can
// cue them without a synthesis round trip.
var (
	FillerPhrases = []message.Message{
		message.New("Um..."),
		message.New("Uh..."),
		message.New("Uh-huh..."),
		message.New("Mm-hmm..."),
		message.New("Hmm..."),
		message.New("Okay..."),
		message.New("Right..."),
		message.New("Let me see..."),
	}

	BackTrackingPhrases = []message.Message{
		message.New("Mm-hmm."),
		message.New("Uh-huh."),
		message.New("Right."),
	}

	FollowUpPhrases = []message.Message{
		message.New("Are you still there?"),
		message.New("Take your time."),
		message.New("Did I lose you?"),
	}
)

// FillerAudio is one pre-synthesized canned phrase, stored fully decoded in
// the output encoding.
type FillerAudio struct {
	Message   message.Message
	AudioData []byte

	ChunkSize       int
	IsInterruptable bool
	SecondsPerChunk float64
}

// SynthesisResult adapts the canned audio to the streaming surface regular
// synthesis uses, so playback treats both identically. Canned phrases are
// short; a cut-off one is recorded in full.
func (f FillerAudio) SynthesisResult() *SynthesisResult {
	text := f.Message.Text
	return &SynthesisResult{
		Stream:      chunkedResult(f.AudioData, f.ChunkSize, nil),
		MessageUpTo: func(float64) string { return text },
	}
}
