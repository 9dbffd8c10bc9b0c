package transcriber

import (
	"encoding/binary"
	"math"
)

// VoiceActivityDetector gates whether raw audio chunks are forwarded to the
// recognizer at all.
type VoiceActivityDetector interface {
	IsSpeech(chunk []byte) bool
}

// RMSDetector reports speech when the root-mean-square level of a 16-bit PCM
// chunk exceeds a full-scale fraction threshold.
type RMSDetector struct {
	threshold float64
}

func NewRMSDetector(threshold float64) *RMSDetector {
	return &RMSDetector{threshold: threshold}
}

func (d *RMSDetector) IsSpeech(chunk []byte) bool {
	if len(chunk) < 2 {
		return false
	}

	var sum float64
	samples := len(chunk) / 2
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(chunk[i*2:]))
		value := float64(sample) / math.MaxInt16
		sum += value * value
	}

	return math.Sqrt(sum/float64(samples)) >= d.threshold
}

// ContextTracker observes committed transcriptions to update dialog-state
// features on the side; it never blocks the transcription path.
type ContextTracker interface {
	ObserveFinalTranscription(transcription Transcription)
}
