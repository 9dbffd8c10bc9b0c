package agent

import (
	"context"
	"strings"
	"unicode"
)

// GoodbyeDetector decides whether an utterance ends the conversation. The
// default is a phrase matcher; model-backed detectors satisfy the same
// interface and are why detection runs concurrently with response generation
// under a bounded wait.
type GoodbyeDetector interface {
	IsGoodbye(ctx context.Context, text string) (bool, error)
}

type PhraseGoodbyeDetector struct {
	phrases []string
}

func NewPhraseGoodbyeDetector(phrases ...string) *PhraseGoodbyeDetector {
	if len(phrases) == 0 {
		phrases = []string{"goodbye", "good bye", "bye", "see you", "talk to you later"}
	}

	normalized := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		normalized = append(normalized, normalizeGoodbye(phrase))
	}
	return &PhraseGoodbyeDetector{phrases: normalized}
}

func (d *PhraseGoodbyeDetector) IsGoodbye(_ context.Context, text string) (bool, error) {
	normalized := " " + normalizeGoodbye(text) + " "
	for _, phrase := range d.phrases {
		if strings.Contains(normalized, " "+phrase+" ") {
			return true, nil
		}
	}
	return false, nil
}

func normalizeGoodbye(text string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}
