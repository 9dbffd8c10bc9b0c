package audio

import "fmt"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"

	// MulawSampleRate is the only sampling rate G.711 µ-law supports.
	MulawSampleRate = 8000
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// Validate rejects combinations the wire formats cannot express, notably
// µ-law at anything other than 8kHz.
func (e EncodingInfo) Validate() error {
	if e.IsZero() {
		return fmt.Errorf("encoding info is incomplete: %+v", e)
	}
	if e.Format.ByteSize() < 0 {
		return fmt.Errorf("unknown audio format %q", e.Format.Name())
	}
	if e.Format == EncodingMulaw && e.SampleRate != MulawSampleRate {
		return fmt.Errorf("mulaw encoding only supports %dHz, got %dHz", MulawSampleRate, e.SampleRate)
	}

	return nil
}

// BytesPerSecond is the size of one second of audio in this encoding.
func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.Format.ByteSize()
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// SilentChunk builds size bytes of encoding-correct silence, used to replace
// muted microphone input without disturbing downstream timing.
func (e EncodingInfo) SilentChunk(size int) []byte {
	chunk := make([]byte, size)
	if value := e.SilenceValue(); value != 0 {
		for i := range chunk {
			chunk[i] = value
		}
	}
	return chunk
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
