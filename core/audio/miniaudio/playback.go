package miniaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/lariatvoice/lariat-core/core/audio"
)

// maxBufferedSeconds bounds how far Play is allowed to run ahead of the
// device, so a barge-in between chunks takes effect quickly.
const maxBufferedSeconds = 1

type Playback struct {
	device *malgo.Device

	mu       sync.Mutex
	buffered []byte
}

func (p *Playback) init(audioContext *malgo.AllocatedContext) error {
	format := malgo.FormatS16
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(audio.DefaultSampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(audio.DefaultSampleRate / 10)
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			p.fill(output, int(frameCount)*bytesPerFrame)
		},
	})
	if err != nil {
		return err
	}

	p.device = device
	return p.device.Start()
}

func (p *Playback) fill(output []byte, need int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffered) == 0 {
		return
	}

	n := copy(output[:need], p.buffered)
	p.buffered = p.buffered[n:]
}

// Play appends one chunk to the device buffer, waiting while more than a
// second of audio is already queued.
func (p *Playback) Play(ctx context.Context, chunk []byte) error {
	if p.device == nil {
		return fmt.Errorf("playback device not initialized")
	}

	limit := audio.DefaultSampleRate * 2 * maxBufferedSeconds
	for {
		p.mu.Lock()
		buffered := len(p.buffered)
		if buffered < limit {
			p.buffered = append(p.buffered, chunk...)
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Stop drops anything still buffered; the device keeps running and plays
// silence until the next chunk.
func (p *Playback) Stop() error {
	p.mu.Lock()
	p.buffered = nil
	p.mu.Unlock()
	return nil
}

func (p *Playback) uninit() error {
	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}

	p.mu.Lock()
	p.buffered = nil
	p.mu.Unlock()
	return nil
}
