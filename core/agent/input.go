package agent

import (
	"encoding/json"

	"github.com/lariatvoice/lariat-core/core/actions"
	"github.com/lariatvoice/lariat-core/core/events"
	"github.com/lariatvoice/lariat-core/core/transcriber"
)

type InputType string

const (
	InputTypeTranscription InputType = "agent_input_transcription"
	InputTypeActionResult  InputType = "agent_input_action_result"
)

// Input is the sum of everything an agent turn can start from: a committed
// caller transcription or the result of a previously dispatched action.
type Input interface {
	InputType() InputType
	Context() InputContext
}

// InputContext carries the per-conversation fields shared by every input
// variant. The caller-backend identifiers are set only for telephony
// conversations.
type InputContext struct {
	ConversationID string
	TwilioSID      string
	VonageUUID     string

	// ResponseTracker, when set, is propagated onto the message events of
	// the turn so the enqueuer can await playback completion.
	ResponseTracker *events.CompletionTracker
}

type TranscriptionInput struct {
	InputContext
	Transcription transcriber.Transcription
}

func (TranscriptionInput) InputType() InputType    { return InputTypeTranscription }
func (i TranscriptionInput) Context() InputContext { return i.InputContext }

type ActionResultInput struct {
	InputContext
	ActionInput  actions.Input
	ActionOutput actions.Output

	// IsQuiet suppresses response generation for this result; only the
	// action-finish transcript record is written.
	IsQuiet bool
}

func (ActionResultInput) InputType() InputType    { return InputTypeActionResult }
func (i ActionResultInput) Context() InputContext { return i.InputContext }

func (i TranscriptionInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type           InputType `json:"type"`
		ConversationID string    `json:"conversation_id"`
		Text           string    `json:"text"`
		Confidence     float64   `json:"confidence"`
		IsFinal        bool      `json:"is_final"`
		IsInterrupt    bool      `json:"is_interrupt"`
	}{
		Type:           InputTypeTranscription,
		ConversationID: i.ConversationID,
		Text:           i.Transcription.Text,
		Confidence:     i.Transcription.Confidence,
		IsFinal:        i.Transcription.IsFinal,
		IsInterrupt:    i.Transcription.IsInterrupt,
	})
}

func (i ActionResultInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type           InputType       `json:"type"`
		ConversationID string          `json:"conversation_id"`
		ActionType     string          `json:"action_type"`
		ActionOutput   json.RawMessage `json:"action_output"`
		IsQuiet        bool            `json:"is_quiet"`
	}{
		Type:           InputTypeActionResult,
		ConversationID: i.ConversationID,
		ActionType:     i.ActionInput.ActionType,
		ActionOutput:   i.ActionOutput.Response,
		IsQuiet:        i.IsQuiet,
	})
}
