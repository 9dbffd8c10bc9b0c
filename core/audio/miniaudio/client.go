// Package miniaudio provides microphone capture and speaker playback devices
// on the miniaudio library. One Client owns the audio context; the capture
// and playback sides satisfy the conversation's AudioInput and AudioOutput
// contracts.
package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/lariatvoice/lariat-core/core/audio"
)

type Client struct {
	// audioContext is kept only so Close can release it.
	audioContext *malgo.AllocatedContext

	capture  Capture
	playback Playback
}

func NewClient() (*Client, error) {
	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := &Client{audioContext: audioContext}

	if err := client.capture.init(audioContext); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	if err := client.playback.init(audioContext); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return client, nil
}

// Capture is the microphone side, for the conversation's audio input.
func (c *Client) Capture() *Capture { return &c.capture }

// Playback is the speaker side, for the conversation's audio output.
func (c *Client) Playback() *Playback { return &c.playback }

func (c *Client) Close() {
	_ = c.capture.uninit()
	_ = c.playback.uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
