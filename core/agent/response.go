package agent

import (
	"encoding/json"
	"fmt"

	"github.com/lariatvoice/lariat-core/core/message"
)

type ResponseType string

const (
	ResponseTypeMessage           ResponseType = "agent_response_message"
	ResponseTypeStop              ResponseType = "agent_response_stop"
	ResponseTypeFillerAudio       ResponseType = "agent_response_filler_audio"
	ResponseTypeBackTrackingAudio ResponseType = "agent_response_back_tracking_audio"
	ResponseTypeFollowUpAudio     ResponseType = "agent_response_follow_up_audio"
)

// Response is the sum of everything the agent can emit downstream: spoken
// messages, the conversation-ending stop marker, and the canned-audio cues
// that bypass synthesis entirely.
type Response interface {
	ResponseType() ResponseType
}

type MessageResponse struct {
	Message message.Message

	// IsInterruptable mirrors the per-token cut-off permission reported by
	// the underlying model; the event-level flag is derived from it.
	IsInterruptable bool
}

func (MessageResponse) ResponseType() ResponseType { return ResponseTypeMessage }

// StopResponse asks the conversation to wind down after the preceding
// messages have been spoken.
type StopResponse struct{}

func (StopResponse) ResponseType() ResponseType { return ResponseTypeStop }

// FillerAudioResponse asks playback to bridge model latency with a canned
// filler phrase.
type FillerAudioResponse struct{}

func (FillerAudioResponse) ResponseType() ResponseType { return ResponseTypeFillerAudio }

// BackTrackingAudioResponse acknowledges a caller's "uh-huh" without starting
// a model turn.
type BackTrackingAudioResponse struct{}

func (BackTrackingAudioResponse) ResponseType() ResponseType { return ResponseTypeBackTrackingAudio }

// FollowUpAudioResponse nudges a caller who went quiet mid-turn.
type FollowUpAudioResponse struct {
	// SecondsSpoken is how much bot audio had been played when the nudge was
	// requested, used to pick a contextually sized follow-up.
	SecondsSpoken float64
}

func (FollowUpAudioResponse) ResponseType() ResponseType { return ResponseTypeFollowUpAudio }

type responseEnvelope struct {
	Type            ResponseType `json:"type"`
	Text            string       `json:"text,omitempty"`
	IsInterruptable bool         `json:"is_interruptable,omitempty"`
	SecondsSpoken   float64      `json:"seconds_spoken,omitempty"`
}

// MarshalResponse renders a response with its type discriminator so it can
// cross process boundaries (telemetry, external executors).
func MarshalResponse(response Response) ([]byte, error) {
	envelope := responseEnvelope{Type: response.ResponseType()}
	switch typed := response.(type) {
	case MessageResponse:
		envelope.Text = typed.Message.Text
		envelope.IsInterruptable = typed.IsInterruptable
	case FollowUpAudioResponse:
		envelope.SecondsSpoken = typed.SecondsSpoken
	case StopResponse, FillerAudioResponse, BackTrackingAudioResponse:
	default:
		return nil, fmt.Errorf("unknown agent response type %T", response)
	}
	return json.Marshal(envelope)
}

// UnmarshalResponse is the inverse of MarshalResponse.
func UnmarshalResponse(data []byte) (Response, error) {
	var envelope responseEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse agent response: %w", err)
	}

	switch envelope.Type {
	case ResponseTypeMessage:
		return MessageResponse{Message: message.New(envelope.Text), IsInterruptable: envelope.IsInterruptable}, nil
	case ResponseTypeStop:
		return StopResponse{}, nil
	case ResponseTypeFillerAudio:
		return FillerAudioResponse{}, nil
	case ResponseTypeBackTrackingAudio:
		return BackTrackingAudioResponse{}, nil
	case ResponseTypeFollowUpAudio:
		return FollowUpAudioResponse{SecondsSpoken: envelope.SecondsSpoken}, nil
	}
	return nil, fmt.Errorf("unknown agent response type %q", envelope.Type)
}
