package synthesizer

import (
	"fmt"

	"github.com/lariatvoice/lariat-core/core/audio"
)

// defaultWordsPerMinute is the speaking-rate assumption behind the
// voice-speed message cutoff.
const defaultWordsPerMinute = 150

type Config struct {
	// Type identifies the synthesizer implementation and feeds span naming.
	Type string

	// Encoding is the output audio format. µ-law output is only valid at
	// 8kHz; Validate enforces that.
	Encoding audio.EncodingInfo

	// EncodeAsWAV wraps each produced chunk in a standalone WAV envelope for
	// outputs that cannot consume raw PCM. Only meaningful for linear16.
	EncodeAsWAV bool

	// WordsPerMinute tunes the voice-speed cutoff estimate; zero means the
	// default of 150.
	WordsPerMinute int
}

func (c Config) Validate() error {
	if err := c.Encoding.Validate(); err != nil {
		return fmt.Errorf("invalid synthesizer encoding: %w", err)
	}
	if c.EncodeAsWAV && c.Encoding.Format != audio.EncodingLinear16 {
		return fmt.Errorf("wav chunk encoding requires linear16 output, got %q", c.Encoding.Format.Name())
	}
	return nil
}

func (c Config) wordsPerMinute() int {
	if c.WordsPerMinute > 0 {
		return c.WordsPerMinute
	}
	return defaultWordsPerMinute
}
