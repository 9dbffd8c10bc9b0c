package transcriber

import "fmt"

// Transcription is one recognition result. Interim results arrive with
// IsFinal false; IsFinal true commits the utterance. IsInterrupt marks that
// the caller spoke over the bot.
type Transcription struct {
	Text        string
	Confidence  float64
	IsFinal     bool
	IsInterrupt bool
}

func (t Transcription) String() string {
	return fmt.Sprintf("Transcription(%s, %f, %t)", t.Text, t.Confidence, t.IsFinal)
}
