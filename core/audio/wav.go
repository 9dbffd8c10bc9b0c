package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	wavChannels    = 1
	wavSampleWidth = 2
	wavHeaderSize  = 44
)

// EncodeWAV wraps a single chunk of 16-bit mono PCM into a self-contained
// RIFF/WAVE file, so every emitted chunk can be decoded independently.
func EncodeWAV(chunk []byte, sampleRate int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(chunk)))

	byteRate := sampleRate * wavChannels * wavSampleWidth
	blockAlign := wavChannels * wavSampleWidth

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(chunk)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(wavChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(wavSampleWidth*8))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(chunk)))
	buf.Write(chunk)

	return buf.Bytes()
}

// DecodeWAV extracts the raw PCM data chunk and sample rate from a
// RIFF/WAVE file.
func DecodeWAV(wav []byte) (data []byte, sampleRate int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(wav) {
			return nil, 0, fmt.Errorf("truncated %q chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
			}
			sampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
		case "data":
			data = wav[body : body+chunkSize]
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if data == nil {
		return nil, 0, fmt.Errorf("no data chunk found")
	}
	return data, sampleRate, nil
}
