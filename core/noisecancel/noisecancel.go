// Package noisecancel filters microphone chunks before they reach the
// recognizer. Cancelers are synchronous and chunk-in chunk-out, so they can
// sit directly on the audio ingest path.
package noisecancel

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Canceler processes one 16-bit PCM chunk and returns the cleaned chunk of
// the same length.
type Canceler interface {
	Process(chunk []byte) []byte
}

type Config struct {
	// Type selects the canceler implementation; empty means passthrough.
	Type string

	// Threshold is the full-scale RMS fraction below which a chunk is
	// considered noise, for the gate canceler.
	Threshold float64
}

const (
	TypePassthrough = ""
	TypeGate        = "gate"
)

func New(config Config) (Canceler, error) {
	switch config.Type {
	case TypePassthrough:
		return Passthrough{}, nil
	case TypeGate:
		return NewGate(config.Threshold), nil
	}
	return nil, fmt.Errorf("unknown noise canceler type %q", config.Type)
}

// Passthrough leaves chunks untouched.
type Passthrough struct{}

func (Passthrough) Process(chunk []byte) []byte { return chunk }

// Gate silences chunks whose RMS level falls below the threshold, with a
// short hangover so word tails are not clipped.
type Gate struct {
	threshold float64

	// hangover counts chunks to keep open after the level last crossed the
	// threshold.
	hangover int
}

const gateHangoverChunks = 3

const defaultGateThreshold = 0.015

func NewGate(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = defaultGateThreshold
	}
	return &Gate{threshold: threshold}
}

func (g *Gate) Process(chunk []byte) []byte {
	if rmsLevel(chunk) >= g.threshold {
		g.hangover = gateHangoverChunks
		return chunk
	}

	if g.hangover > 0 {
		g.hangover--
		return chunk
	}

	return make([]byte, len(chunk))
}

func rmsLevel(chunk []byte) float64 {
	samples := len(chunk) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(chunk[i*2:]))
		value := float64(sample) / math.MaxInt16
		sum += value * value
	}
	return math.Sqrt(sum / float64(samples))
}
