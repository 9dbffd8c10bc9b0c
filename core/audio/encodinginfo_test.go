package audio

import (
	"encoding/binary"
	"testing"
)

func TestValidateRejectsMulawAtNon8kRates(t *testing.T) {
	for _, rate := range []int{16000, 44100, 48000, 7999} {
		info := EncodingInfo{SampleRate: rate, Format: EncodingMulaw}
		if err := info.Validate(); err == nil {
			t.Errorf("expected mulaw at %dHz to be rejected", rate)
		}
	}

	info := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}
	if err := info.Validate(); err != nil {
		t.Fatalf("expected mulaw at 8kHz to validate, got %v", err)
	}
}

func TestBytesPerSecond(t *testing.T) {
	linear := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}
	if got := linear.BytesPerSecond(); got != 32000 {
		t.Errorf("expected 32000 bytes/s for 16kHz linear16, got %d", got)
	}

	mulaw := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}
	if got := mulaw.BytesPerSecond(); got != 8000 {
		t.Errorf("expected 8000 bytes/s for 8kHz mulaw, got %d", got)
	}
}

func TestSilentChunkMatchesEncoding(t *testing.T) {
	linear := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}
	chunk := linear.SilentChunk(8)
	if len(chunk) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(chunk))
	}
	for i, b := range chunk {
		if b != 0 {
			t.Fatalf("expected linear16 silence to be zero filled, byte %d is %#x", i, b)
		}
	}

	mulaw := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}
	chunk = mulaw.SilentChunk(4)
	for i, b := range chunk {
		if b != 0xFF {
			t.Fatalf("expected mulaw silence to be 0xFF filled, byte %d is %#x", i, b)
		}
	}
}

func TestLinearToMulawSilence(t *testing.T) {
	linear := make([]byte, 16)
	out := LinearToMulaw(linear)
	if len(out) != 8 {
		t.Fatalf("expected one mulaw byte per sample, got %d", len(out))
	}
	for i, b := range out {
		if b != 0xFF {
			t.Fatalf("expected companded silence to be 0xFF, byte %d is %#x", i, b)
		}
	}
}

func TestLinearSampleToMulawMatchesBufferCompanding(t *testing.T) {
	samples := []int16{0, -1, 1, 100, -100, 1000, -1000, 32767, -32768}

	linear := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(linear[i*2:], uint16(sample))
	}

	buffered := LinearToMulaw(linear)
	for i, sample := range samples {
		if got := LinearSampleToMulaw(sample); got != buffered[i] {
			t.Errorf("sample %d compands to %#x per-sample but %#x buffered", sample, got, buffered[i])
		}
	}

	if got := LinearSampleToMulaw(0); got != 0xFF {
		t.Errorf("expected silence to compand to 0xFF, got %#x", got)
	}
}

func TestEncodeDecodeWAVRoundTrip(t *testing.T) {
	pcm := make([]byte, 32)
	for i := range 16 {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i*100))
	}

	wav := EncodeWAV(pcm, 16000)
	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("expected a %d byte file, got %d", wavHeaderSize+len(pcm), len(wav))
	}

	data, rate, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("failed to decode emitted wav: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	if string(data) != string(pcm) {
		t.Errorf("decoded data does not match the original pcm")
	}
}
