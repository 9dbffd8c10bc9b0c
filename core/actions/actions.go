// Package actions defines the dispatch contract between the agent and the
// external action executor: function calls surfaced inline in the model's
// output stream, the inputs enqueued for execution, and the factory used to
// instantiate configured actions. Execution bodies live outside this module.
package actions

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/lariatvoice/lariat-core/core/events"
)

// FunctionCall is an inline element of the agent's output stream separating
// tool invocations from speech tokens. Arguments is an opaque JSON object
// string produced by the model.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the model-provided JSON argument string into a
// string-keyed mapping.
func (c FunctionCall) ParseArguments() (map[string]any, error) {
	params := map[string]any{}
	if c.Arguments == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(c.Arguments), &params); err != nil {
		return nil, fmt.Errorf("failed to parse function call arguments: %w", err)
	}
	return params, nil
}

// UserMessageKey is the reserved parameter name carrying a user-facing
// acknowledgement to speak before the action runs.
const UserMessageKey = "user_message"

type Config struct {
	// Type is matched against FunctionCall.Name during dispatch.
	Type string
}

// Input is the unit enqueued on the actions queue for the external executor.
type Input struct {
	ActionID       string
	ActionType     string
	ConversationID string
	Params         map[string]any

	// TwilioSID and VonageUUID identify the caller leg for phone-call
	// actions; empty otherwise.
	TwilioSID  string
	VonageUUID string

	// UserMessageTracker, when set, is the completion tracker of the spoken
	// acknowledgement; the executor waits on it before acting.
	UserMessageTracker *events.CompletionTracker
}

func NewInput(actionType, conversationID string, params map[string]any, tracker *events.CompletionTracker) Input {
	return Input{
		ActionID:           uuid.NewString(),
		ActionType:         actionType,
		ConversationID:     conversationID,
		Params:             params,
		UserMessageTracker: tracker,
	}
}

// ParamsJSON renders the parameter mapping for transcript records.
func (i Input) ParamsJSON() string {
	encoded, err := json.Marshal(i.Params)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// Output is what the executor reports back once an action finished.
type Output struct {
	Response json.RawMessage
}

// Action is an instantiated, dispatchable action.
type Action interface {
	Config() Config
	IsInterruptable() bool
	CreateInput(conversationID string, params map[string]any, tracker *events.CompletionTracker) (Input, error)
}

// TwilioPhoneCallAction additionally needs the caller's Twilio SID.
type TwilioPhoneCallAction interface {
	Action
	CreateTwilioPhoneCallInput(conversationID string, params map[string]any, twilioSID string, tracker *events.CompletionTracker) (Input, error)
}

// VonagePhoneCallAction additionally needs the caller's Vonage UUID.
type VonagePhoneCallAction interface {
	Action
	CreateVonagePhoneCallInput(conversationID string, params map[string]any, vonageUUID string, tracker *events.CompletionTracker) (Input, error)
}

// Factory instantiates actions from their configs.
type Factory interface {
	CreateAction(config Config) (Action, error)
}

// SchemaFor reflects the JSON schema of an action's parameter struct, for
// exposing configured actions to the model as callable functions.
func SchemaFor[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	var params T
	return reflector.Reflect(&params)
}
