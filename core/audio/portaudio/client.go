// Package portaudio provides a combined capture and playback device on
// PortAudio's blocking stream API, satisfying the conversation's AudioInput
// and AudioOutput contracts with a single full-duplex stream.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/lariatvoice/lariat-core/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	// leftover holds a partial playback buffer between Play calls.
	leftover []byte

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, float64(audio.DefaultSampleRate), bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// Start launches the capture loop; onChunk receives every read buffer until
// Stop or context cancellation.
func (c *Client) Start(ctx context.Context, onChunk func(chunk []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	go c.captureLoop(ctx, onChunk)
	return nil
}

func (c *Client) captureLoop(ctx context.Context, onChunk func(chunk []byte)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			continue
		}

		buffer := bytes.Buffer{}
		binary.Write(&buffer, binary.LittleEndian, c.in)
		onChunk(buffer.Bytes())
	}
}

// Play writes one chunk to the stream in device-sized buffers; a trailing
// partial buffer is held until the next call.
func (c *Client) Play(_ context.Context, chunk []byte) error {
	deviceBuffer := c.bufferSize * 2

	data := append(c.leftover, chunk...)
	offset := 0
	for offset+deviceBuffer <= len(data) {
		binary.Read(bytes.NewReader(data[offset:offset+deviceBuffer]), binary.LittleEndian, c.out)
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
		offset += deviceBuffer
	}

	c.leftover = append(c.leftover[:0], data[offset:]...)
	return nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.leftover = nil
	if !c.started {
		return nil
	}

	c.started = false
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	_ = c.Stop()
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
