package audio

import "encoding/binary"

// G.711 µ-law companding constants.
const (
	mulawBias = 0x84
	mulawClip = 32635
)

// LinearToMulaw compands 16-bit little-endian PCM into G.711 µ-law, one byte
// per sample.
func LinearToMulaw(linear []byte) []byte {
	out := make([]byte, len(linear)/2)
	for i := range out {
		sample := int16(binary.LittleEndian.Uint16(linear[i*2:]))
		out[i] = LinearSampleToMulaw(sample)
	}
	return out
}

// LinearSampleToMulaw compands a single 16-bit sample into its µ-law byte.
func LinearSampleToMulaw(sample int16) byte {
	sign := byte(0)
	value := int(sample)
	if value < 0 {
		value = -value
		sign = 0x80
	}
	if value > mulawClip {
		value = mulawClip
	}
	value += mulawBias

	exponent := 7
	for mask := 0x4000; exponent > 0 && value&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := (value >> (exponent + 3)) & 0x0F

	return ^(sign | byte(exponent<<4) | byte(mantissa))
}
