package conversation

import (
	"context"

	"github.com/lariatvoice/lariat-core/core/pipeline"
	"github.com/lariatvoice/lariat-core/core/transcriber"
)

// AudioInput is the microphone side of a conversation. Start begins capture
// and invokes onChunk for every captured buffer until Stop or context
// cancellation.
type AudioInput interface {
	Start(ctx context.Context, onChunk func(chunk []byte)) error
	Stop() error
}

// AudioOutput is the speaker side. Play blocks until the chunk has been
// handed to the device, which is what playback-time accounting is based on.
type AudioOutput interface {
	Play(ctx context.Context, chunk []byte) error
	Stop() error
}

// Transcriber is the recognizer surface the conversation drives. Concrete
// recognizers embed transcriber.Base, which provides everything except Start
// and Close.
type Transcriber interface {
	Start(ctx context.Context) error
	SendAudio(chunk []byte)
	OutputQueue() *pipeline.Queue[transcriber.Transcription]
	Mute()
	Unmute()
	Close() error
}
