package conversation

import (
	"context"
	"fmt"

	"github.com/lariatvoice/lariat-core/core/agent"
	"github.com/lariatvoice/lariat-core/core/events"
	"github.com/lariatvoice/lariat-core/core/message"
	"github.com/lariatvoice/lariat-core/core/synthesizer"
)

// playableItem is one unit on the playback queue: synthesized speech, a
// canned cue, or the stop marker. The originating event rides along so
// playback observes barge-in between chunks.
type playableItem struct {
	event  *events.AgentResponse[agent.Response]
	msg    message.Message
	result *synthesizer.SynthesisResult
	stop   bool
}

// processResponse turns one agent response into a playable item. Synthesis
// happens here, off the playback path, so a long synthesis does not starve
// the speaker between already-queued items.
func (c *Conversation) processResponse(
	ctx context.Context,
	event *events.AgentResponse[agent.Response],
) error {
	if event.IsInterrupted() {
		return nil
	}

	switch response := event.Payload.(type) {
	case agent.MessageResponse:
		result, err := c.synth.CreateSpeech(ctx, response.Message, c.chunkSize())
		if err != nil {
			return fmt.Errorf("failed to synthesize response: %w", err)
		}
		c.playbackQueue.Enqueue(&playableItem{event: event, msg: response.Message, result: result})

	case agent.StopResponse:
		c.playbackQueue.Enqueue(&playableItem{event: event, stop: true})

	case agent.FillerAudioResponse:
		c.enqueueCanned(event, c.pickCanned(func() (synthesizer.FillerAudio, bool) {
			return c.canned.FillerAudio()
		}))

	case agent.BackTrackingAudioResponse:
		c.enqueueCanned(event, c.pickCanned(func() (synthesizer.FillerAudio, bool) {
			return c.canned.BackTrackingAudio()
		}))

	case agent.FollowUpAudioResponse:
		c.enqueueCanned(event, c.pickCanned(func() (synthesizer.FillerAudio, bool) {
			return c.canned.FollowUpAudio(response.SecondsSpoken)
		}))

	default:
		return fmt.Errorf("unknown agent response type %T", event.Payload)
	}

	return nil
}

func (c *Conversation) pickCanned(pick func() (synthesizer.FillerAudio, bool)) *synthesizer.FillerAudio {
	if c.canned == nil {
		return nil
	}
	audio, ok := pick()
	if !ok {
		return nil
	}
	return &audio
}

func (c *Conversation) enqueueCanned(event *events.AgentResponse[agent.Response], audio *synthesizer.FillerAudio) {
	if audio == nil {
		logger.Debug("no canned audio prepared for cue", "conversation_id", c.id)
		return
	}
	c.playbackQueue.Enqueue(&playableItem{event: event, result: audio.SynthesisResult()})
}

// playItem plays one item chunk by chunk. A barge-in between chunks cuts the
// item off and repairs the transcript to the heard prefix; only a fully
// played item signals its completion tracker.
func (c *Conversation) playItem(ctx context.Context, item *playableItem) error {
	if item.stop {
		item.event.Tracker.Signal()
		logger.Info("conversation ending on agent stop", "conversation_id", c.id)
		c.Stop()
		return nil
	}
	if item.event.IsInterrupted() {
		return nil
	}

	isMessage := item.msg.Text != ""
	if isMessage {
		c.transcript.AddBotMessage(item.msg.Text, c.id)
	}

	bytesPerSecond := c.synth.Config().Encoding.BytesPerSecond()
	playedBytes := 0
	cutOff := false
	for chunk, err := range item.result.Stream {
		if err != nil {
			logger.Error("synthesis stream failed mid-playback", "error", err)
			break
		}
		if item.event.IsInterrupted() {
			cutOff = true
			break
		}
		if len(chunk.Chunk) == 0 {
			continue
		}

		if err := c.output.Play(ctx, chunk.Chunk); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("failed to play audio chunk", "error", err)
			break
		}

		playedBytes += len(chunk.Chunk)
		c.addBotSeconds(float64(len(chunk.Chunk)) / float64(bytesPerSecond))
		c.touchActivity()
	}

	if cutOff {
		if isMessage {
			secondsSpoken := float64(playedBytes) / float64(bytesPerSecond)
			heard := item.result.MessageUpTo(secondsSpoken)
			if !c.transcript.UpdateLastBotMessage(heard) {
				logger.Error("failed to repair cut-off bot message", "conversation_id", c.id)
			}
			logger.Debug("playback cut off", "conversation_id", c.id,
				"seconds_spoken", secondsSpoken, "heard", heard)
		}
		return nil
	}

	item.event.MakeUninterruptable()
	item.event.Tracker.Signal()
	c.registry.sweep()
	return nil
}
