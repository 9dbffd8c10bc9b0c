package synthesizer

import (
	"fmt"

	"github.com/lariatvoice/lariat-core/core/audio"
	"github.com/lariatvoice/lariat-core/core/message"
)

// ResultFromWAV converts a complete synthesized WAV payload into the chunked
// streaming surface, resampling and re-encoding to the configured output
// format. Used by synthesizers whose backend returns whole files.
func (b *Base) ResultFromWAV(wav []byte, msg message.Message, chunkSize int) (*SynthesisResult, error) {
	data, sampleRate, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("failed to decode synthesized wav: %w", err)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("synthesized wav reports sample rate %d", sampleRate)
	}

	samples := resampleAll(bytesToSamples(data), sampleRate, b.config.Encoding.SampleRate)
	encoded, err := encodeSamples(samples, b.config.Encoding)
	if err != nil {
		return nil, err
	}

	return b.resultFromEncoded(encoded, msg, chunkSize), nil
}

// resultFromEncoded streams audio already in the output encoding, attaching
// the uniform-characters cutoff estimate.
func (b *Base) resultFromEncoded(encoded []byte, msg message.Message, chunkSize int) *SynthesisResult {
	encoding := b.config.Encoding

	var wrap func([]byte) []byte
	if b.config.EncodeAsWAV {
		wrap = func(chunk []byte) []byte { return audio.EncodeWAV(chunk, encoding.SampleRate) }
	}

	return &SynthesisResult{
		Stream: chunkedResult(encoded, chunkSize, wrap),
		MessageUpTo: func(secondsSpoken float64) string {
			return MessageCutoffFromTotalResponseLength(encoding, msg, secondsSpoken, len(encoded))
		},
	}
}
