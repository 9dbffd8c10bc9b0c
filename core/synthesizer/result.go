package synthesizer

import (
	"iter"
	"strings"

	"github.com/lariatvoice/lariat-core/core/audio"
	"github.com/lariatvoice/lariat-core/core/message"
)

// ChunkResult is one streamed unit of synthesized audio. Exactly one chunk of
// every stream carries IsLastChunk.
type ChunkResult struct {
	Chunk       []byte
	IsLastChunk bool
}

// SynthesisResult pairs the audio stream with a repair estimate: when
// playback is cut off after some seconds, MessageUpTo reports the prefix of
// the message the caller is assumed to have heard.
type SynthesisResult struct {
	Stream      iter.Seq2[ChunkResult, error]
	MessageUpTo func(secondsSpoken float64) string
}

// MessageCutoffFromTotalResponseLength estimates the heard prefix by assuming
// characters are spoken uniformly across the full output duration.
func MessageCutoffFromTotalResponseLength(
	encoding audio.EncodingInfo,
	msg message.Message,
	secondsSpoken float64,
	sizeOfOutput int,
) string {
	if msg.Text == "" || sizeOfOutput <= 0 {
		return msg.Text
	}

	outputSeconds := float64(sizeOfOutput) / float64(encoding.BytesPerSecond())
	if outputSeconds <= 0 {
		return msg.Text
	}

	runes := []rune(msg.Text)
	characters := int(secondsSpoken / outputSeconds * float64(len(runes)))
	if characters >= len(runes) {
		return msg.Text
	}
	return string(runes[:characters])
}

// MessageCutoffFromVoiceSpeed estimates the heard prefix from an assumed
// speaking rate, cutting on word boundaries.
func MessageCutoffFromVoiceSpeed(msg message.Message, secondsSpoken float64, wordsPerMinute int) string {
	if wordsPerMinute <= 0 {
		wordsPerMinute = defaultWordsPerMinute
	}

	wordsSpoken := int(float64(wordsPerMinute) / 60 * secondsSpoken)
	words := strings.Fields(msg.Text)
	if wordsSpoken >= len(words) {
		return msg.Text
	}
	return strings.Join(words[:wordsSpoken], " ")
}

// chunkedResult streams already-synthesized audio in chunkSize pieces; the
// remainder (possibly empty) is flagged as the last chunk.
func chunkedResult(data []byte, chunkSize int, wrap func([]byte) []byte) iter.Seq2[ChunkResult, error] {
	return func(yield func(ChunkResult, error) bool) {
		if chunkSize <= 0 {
			chunkSize = len(data)
		}
		offset := 0
		for chunkSize > 0 && offset+chunkSize < len(data) {
			chunk := data[offset : offset+chunkSize]
			if wrap != nil {
				chunk = wrap(chunk)
			}
			if !yield(ChunkResult{Chunk: chunk}, nil) {
				return
			}
			offset += chunkSize
		}

		last := data[offset:]
		if wrap != nil {
			last = wrap(last)
		}
		yield(ChunkResult{Chunk: last, IsLastChunk: true}, nil)
	}
}
