package agent

import (
	"context"
	"iter"

	"github.com/lariatvoice/lariat-core/core/actions"
)

// Responder is the single-shot model contract: one utterance in, at most one
// utterance out.
type Responder interface {
	// Respond returns the reply text (empty for no reply) and whether the
	// model decided to end the conversation.
	Respond(ctx context.Context, humanInput string, conversationID string, isInterrupt bool) (string, bool, error)
}

// StreamedItem is one element of a streaming model's output: either a chunk
// of speakable text or an inline function call, never both.
type StreamedItem struct {
	Text         string
	FunctionCall *actions.FunctionCall

	// IsInterruptable lets the model mark individual chunks as must-finish.
	IsInterruptable bool
}

// StreamingResponder is the incremental model contract; each yielded item is
// forwarded downstream as soon as it arrives.
type StreamingResponder interface {
	GenerateResponse(
		ctx context.Context,
		humanInput string,
		conversationID string,
		isInterrupt bool,
		confidence float64,
	) iter.Seq2[StreamedItem, error]
}
