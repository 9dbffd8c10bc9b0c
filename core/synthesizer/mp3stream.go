package synthesizer

import (
	"context"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/lariatvoice/lariat-core/core/audio"
	"github.com/lariatvoice/lariat-core/core/pipeline"
)

// MP3Stream incrementally decodes a stream of MP3 fragments into chunks of
// the configured output encoding. The decoder blocks on its reader, so it
// runs inside a blocking worker; the in-band end of the stream is a nil
// fragment rather than queue closure, letting one worker serve several
// consecutive syntheses' tails cleanly.
type MP3Stream struct {
	encoding  audio.EncodingInfo
	chunkSize int
	wrapWAV   bool

	worker *pipeline.BlockingWorker[[]byte, ChunkResult]
}

type MP3StreamOption func(*MP3Stream)

// WithWAVEncodedChunks wraps each emitted chunk in a standalone WAV envelope.
func WithWAVEncodedChunks() MP3StreamOption {
	return func(s *MP3Stream) { s.wrapWAV = true }
}

func NewMP3Stream(encoding audio.EncodingInfo, chunkSize int, opts ...MP3StreamOption) (*MP3Stream, error) {
	if err := encoding.Validate(); err != nil {
		return nil, err
	}

	s := &MP3Stream{encoding: encoding, chunkSize: chunkSize}
	for _, opt := range opts {
		opt(s)
	}

	s.worker = pipeline.NewBlockingWorker(
		pipeline.NewQueue[[]byte](),
		pipeline.NewQueue[ChunkResult](),
		s.runLoop,
	)
	return s, nil
}

func (s *MP3Stream) Start(ctx context.Context) { s.worker.Start(ctx) }
func (s *MP3Stream) Terminate()                { s.worker.Terminate() }
func (s *MP3Stream) AwaitDone()                { s.worker.AwaitDone() }

func (s *MP3Stream) OutputQueue() *pipeline.Queue[ChunkResult] { return s.worker.OutputQueue() }

// SendFragment feeds one MP3 fragment; nil fragments are ignored.
func (s *MP3Stream) SendFragment(fragment []byte) {
	if fragment == nil {
		return
	}
	s.worker.InputQueue().Enqueue(fragment)
}

// Finish marks the end of the MP3 stream; the decoder flushes and emits the
// final chunk.
func (s *MP3Stream) Finish() {
	s.worker.InputQueue().Enqueue(nil)
}

func (s *MP3Stream) runLoop(bridgedIn <-chan []byte, bridgedOut chan<- ChunkResult) {
	reader, writer := io.Pipe()
	go feedFragments(bridgedIn, writer)

	decoder, err := mp3.NewDecoder(reader)
	if err != nil {
		logger.Error("failed to open mp3 decoder", "error", err)
		reader.CloseWithError(err)
		bridgedOut <- ChunkResult{IsLastChunk: true}
		return
	}

	resample := resampler{srcRate: decoder.SampleRate(), dstRate: s.encoding.SampleRate}

	var pending []byte
	emitSample := func(sample int16) {
		if s.encoding.Format == audio.EncodingMulaw {
			pending = append(pending, audio.LinearSampleToMulaw(sample))
			return
		}
		pending = append(pending, byte(uint16(sample)), byte(uint16(sample)>>8))
	}

	frame := make([]byte, 4096)
	for {
		n, err := decoder.Read(frame)
		if n > 0 {
			// The decoder always yields 16-bit little-endian stereo.
			resample.process(downmixStereo(bytesToSamples(frame[:n])), emitSample)
			for s.chunkSize > 0 && len(pending) > s.chunkSize {
				bridgedOut <- ChunkResult{Chunk: s.maybeWrap(pending[:s.chunkSize])}
				pending = pending[s.chunkSize:]
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Error("failed to decode mp3 stream", "error", err)
			}
			break
		}
	}

	bridgedOut <- ChunkResult{Chunk: s.maybeWrap(pending), IsLastChunk: true}
}

func (s *MP3Stream) maybeWrap(chunk []byte) []byte {
	if !s.wrapWAV {
		return chunk
	}
	return audio.EncodeWAV(chunk, s.encoding.SampleRate)
}

// feedFragments copies queued fragments into the decoder's pipe until the nil
// end-of-stream sentinel or channel closure.
func feedFragments(bridgedIn <-chan []byte, writer *io.PipeWriter) {
	defer writer.Close()

	for fragment := range bridgedIn {
		if fragment == nil {
			return
		}
		if _, err := writer.Write(fragment); err != nil {
			return
		}
	}
}
