package transcriber

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"
)

// Classifier decides whether an utterance matches a learned intent. Ready
// reports whether initialization has completed; callers must not block audio
// ingest on it.
type Classifier interface {
	Ready() bool
	Matches(text string) bool
}

// PhraseClassifier matches utterances against a normalized phrase set. It
// stands in for the embedding-based intent models; Initialize builds the
// lookup set and may be run asynchronously.
type PhraseClassifier struct {
	phrases    []string
	normalized map[string]struct{}
	ready      atomic.Bool
}

func NewPhraseClassifier(phrases ...string) *PhraseClassifier {
	return &PhraseClassifier{phrases: phrases}
}

func (c *PhraseClassifier) Initialize(ctx context.Context) error {
	normalized := make(map[string]struct{}, len(c.phrases))
	for _, phrase := range c.phrases {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		normalized[normalizeUtterance(phrase)] = struct{}{}
	}

	c.normalized = normalized
	c.ready.Store(true)
	return nil
}

func (c *PhraseClassifier) Ready() bool {
	return c != nil && c.ready.Load()
}

func (c *PhraseClassifier) Matches(text string) bool {
	if !c.Ready() {
		return false
	}

	_, ok := c.normalized[normalizeUtterance(text)]
	return ok
}

func normalizeUtterance(text string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// DefaultInterruptClassifier matches affirmative barge-in intents, the short
// utterances a caller uses to talk over the bot on purpose.
func DefaultInterruptClassifier() *PhraseClassifier {
	return NewPhraseClassifier(
		"yes", "yeah", "yep", "sure", "okay", "stop", "wait",
		"hold on", "one moment", "excuse me",
	)
}

// DefaultBackTrackingClassifier matches continuation acknowledgements that
// should not trigger a full agent turn.
func DefaultBackTrackingClassifier() *PhraseClassifier {
	return NewPhraseClassifier(
		"uh huh", "mm hmm", "mhm", "right", "i see", "go on",
		"i understand", "got it",
	)
}
