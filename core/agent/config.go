package agent

import (
	"time"

	"github.com/lariatvoice/lariat-core/core/actions"
	"github.com/lariatvoice/lariat-core/core/message"
)

// defaultGoodbyeTimeout bounds how long a finished turn waits for the
// concurrent goodbye check before moving on without it.
const defaultGoodbyeTimeout = 100 * time.Millisecond

type Config struct {
	// Type identifies the agent implementation and feeds span naming.
	Type string
	// ModelName is the underlying engine identifier, when there is one.
	ModelName string

	// GenerateResponses selects the streaming model path; when false the
	// single-shot Respond path is used.
	GenerateResponses bool
	// AllowAgentToBeCutOff permits barge-in on this agent's messages.
	AllowAgentToBeCutOff bool
	// SendFillerAudio emits a filler cue before each turn's first message.
	SendFillerAudio bool

	// EndConversationOnGoodbye runs goodbye detection on every turn's input.
	EndConversationOnGoodbye bool
	// GoodbyeTimeout bounds the post-turn wait on the detector; zero means
	// the default of 100ms.
	GoodbyeTimeout time.Duration

	// Actions lists the function calls this agent may dispatch.
	Actions []actions.Config

	// CutOffResponses are spoken when the agent resumes after being cut off
	// mid-message; one is chosen at random.
	CutOffResponses []message.Message
	// LowConfidenceResponses are clarification prompts for poorly recognized
	// input; one is chosen at random.
	LowConfidenceResponses []message.Message
}

func (c Config) goodbyeTimeout() time.Duration {
	if c.GoodbyeTimeout > 0 {
		return c.GoodbyeTimeout
	}
	return defaultGoodbyeTimeout
}
