package synthesizer

import (
	"encoding/binary"
	"fmt"

	"github.com/lariatvoice/lariat-core/core/audio"
)

func bytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

func downmixStereo(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		mono[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
	}
	return mono
}

// resampler converts a sample stream between rates by zero-order hold,
// keeping its position across calls so chunk boundaries do not drift.
type resampler struct {
	srcRate int
	dstRate int

	srcPos  int64
	nextOut int64
}

func (r *resampler) process(samples []int16, emit func(int16)) {
	if r.srcRate == r.dstRate {
		for _, sample := range samples {
			emit(sample)
		}
		return
	}

	for _, sample := range samples {
		for r.nextOut*int64(r.srcRate)/int64(r.dstRate) == r.srcPos {
			emit(sample)
			r.nextOut++
		}
		r.srcPos++
	}
}

func resampleAll(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate {
		return samples
	}

	r := resampler{srcRate: srcRate, dstRate: dstRate}
	resampled := make([]int16, 0, len(samples)*dstRate/srcRate+1)
	r.process(samples, func(sample int16) { resampled = append(resampled, sample) })
	return resampled
}

// encodeSamples renders mono samples into the configured wire encoding.
func encodeSamples(samples []int16, encoding audio.EncodingInfo) ([]byte, error) {
	switch encoding.Format {
	case audio.EncodingMulaw:
		encoded := make([]byte, len(samples))
		for i, sample := range samples {
			encoded[i] = audio.LinearSampleToMulaw(sample)
		}
		return encoded, nil
	case audio.EncodingLinear16:
		encoded := make([]byte, len(samples)*2)
		for i, sample := range samples {
			binary.LittleEndian.PutUint16(encoded[i*2:], uint16(sample))
		}
		return encoded, nil
	}
	return nil, fmt.Errorf("cannot encode samples as %q", encoding.Format.Name())
}
