package synthesizer

import (
	"context"
	"fmt"

	"github.com/lariatvoice/lariat-core/core/message"
)

// PrepareCannedAudios synthesizes the filler, back-tracking, and follow-up
// phrase sets up front and stores them on the base, so playback can cue them
// later without a synthesis round trip.
func (b *Base) PrepareCannedAudios(ctx context.Context, synth Synthesizer, chunkSize int) error {
	fillers, err := b.synthesizeSet(ctx, synth, FillerPhrases, chunkSize)
	if err != nil {
		return fmt.Errorf("failed to prepare filler audios: %w", err)
	}
	if err := b.SetFillerAudios(fillers); err != nil {
		return err
	}

	backTracking, err := b.synthesizeSet(ctx, synth, BackTrackingPhrases, chunkSize)
	if err != nil {
		return fmt.Errorf("failed to prepare back-tracking audios: %w", err)
	}
	if err := b.SetBackTrackingAudios(backTracking); err != nil {
		return err
	}

	followUps, err := b.synthesizeSet(ctx, synth, FollowUpPhrases, chunkSize)
	if err != nil {
		return fmt.Errorf("failed to prepare follow-up audios: %w", err)
	}
	return b.SetFollowUpAudios(followUps)
}

func (b *Base) synthesizeSet(
	ctx context.Context,
	synth Synthesizer,
	phrases []message.Message,
	chunkSize int,
) ([]FillerAudio, error) {
	audios := make([]FillerAudio, 0, len(phrases))
	for _, phrase := range phrases {
		result, err := synth.CreateSpeech(ctx, phrase, chunkSize)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize %q: %w", phrase.Text, err)
		}

		var data []byte
		for chunk, err := range result.Stream {
			if err != nil {
				return nil, fmt.Errorf("failed to stream %q: %w", phrase.Text, err)
			}
			data = append(data, chunk.Chunk...)
		}

		audios = append(audios, FillerAudio{
			Message:         phrase,
			AudioData:       data,
			ChunkSize:       chunkSize,
			IsInterruptable: true,
			SecondsPerChunk: float64(chunkSize) / float64(b.config.Encoding.BytesPerSecond()),
		})
	}
	return audios, nil
}
