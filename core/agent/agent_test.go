package agent

import (
	"context"
	"encoding/json"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/lariatvoice/lariat-core/core/actions"
	"github.com/lariatvoice/lariat-core/core/events"
	"github.com/lariatvoice/lariat-core/core/message"
	"github.com/lariatvoice/lariat-core/core/transcriber"
	"github.com/lariatvoice/lariat-core/core/transcript"
)

type scriptedResponder struct {
	response   string
	shouldStop bool
	err        error
}

func (r *scriptedResponder) Respond(context.Context, string, string, bool) (string, bool, error) {
	return r.response, r.shouldStop, r.err
}

type scriptedStreamer struct {
	items []StreamedItem
	err   error
}

func (r *scriptedStreamer) GenerateResponse(
	context.Context, string, string, bool, float64,
) iter.Seq2[StreamedItem, error] {
	return func(yield func(StreamedItem, error) bool) {
		for _, item := range r.items {
			if !yield(item, nil) {
				return
			}
		}
		if r.err != nil {
			yield(StreamedItem{}, r.err)
		}
	}
}

func transcriptionEvent(text string) *events.Interruptible[Input] {
	return events.NewInterruptible[Input](TranscriptionInput{
		InputContext:  InputContext{ConversationID: "conversation-1"},
		Transcription: transcriber.Transcription{Text: text, Confidence: 0.95, IsFinal: true},
	})
}

func drainResponses(a *Agent) []Response {
	responses := []Response{}
	for {
		event, ok := a.OutputQueue().TryDequeue()
		if !ok {
			return responses
		}
		responses = append(responses, event.Payload)
	}
}

func messageTexts(responses []Response) []string {
	texts := []string{}
	for _, response := range responses {
		if msg, ok := response.(MessageResponse); ok {
			texts = append(texts, msg.Message.Text)
		}
	}
	return texts
}

func TestProcessEmitsStreamedMessagesInOrder(t *testing.T) {
	a := New(
		Config{Type: "echo", GenerateResponses: true, AllowAgentToBeCutOff: true},
		WithStreamingResponder(&scriptedStreamer{items: []StreamedItem{
			{Text: "First sentence.", IsInterruptable: true},
			{Text: "Second sentence.", IsInterruptable: true},
		}}),
	)
	a.AttachTranscript(transcript.New())

	if err := a.process(context.Background(), transcriptionEvent("hello there")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	texts := messageTexts(drainResponses(a))
	if len(texts) != 2 || texts[0] != "First sentence." || texts[1] != "Second sentence." {
		t.Fatalf("expected both messages in stream order, got %v", texts)
	}

	entries := a.transcript.Entries()
	if len(entries) != 1 || entries[0].Kind != transcript.EntryKindHumanMessage {
		t.Fatalf("expected a single human transcript entry, got %v", entries)
	}
	if entries[0].Text != "hello there" || entries[0].Confidence != 0.95 {
		t.Errorf("expected the utterance recorded with its confidence, got %+v", entries[0])
	}
}

func TestProcessHonorsCutOffPermission(t *testing.T) {
	a := New(
		Config{Type: "echo", GenerateResponses: true, AllowAgentToBeCutOff: false},
		WithStreamingResponder(&scriptedStreamer{items: []StreamedItem{
			{Text: "Must finish.", IsInterruptable: true},
		}}),
	)
	a.AttachTranscript(transcript.New())

	if err := a.process(context.Background(), transcriptionEvent("hello")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	event, ok := a.OutputQueue().TryDequeue()
	if !ok {
		t.Fatal("expected a message event")
	}
	if event.IsInterruptable() {
		t.Error("expected the message to be uninterruptable when cut-off is disallowed")
	}
	if msg := event.Payload.(MessageResponse); msg.IsInterruptable {
		t.Error("expected the payload to mirror the cut-off decision")
	}
}

func TestBargeInAbandonsTurnAndKeepsWorkerAlive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstEmitted := make(chan struct{})
	var firstEmittedOnce sync.Once
	a := New(
		Config{Type: "echo", GenerateResponses: true, AllowAgentToBeCutOff: true},
		WithStreamingResponder(streamerFunc(func(streamCtx context.Context) iter.Seq2[StreamedItem, error] {
			return func(yield func(StreamedItem, error) bool) {
				if !yield(StreamedItem{Text: "First sentence.", IsInterruptable: true}, nil) {
					return
				}
				// The streamer runs once per turn; only the first arrival may
				// close the signal channel.
				firstEmittedOnce.Do(func() { close(firstEmitted) })
				<-streamCtx.Done()
			}
		})),
	)
	a.AttachTranscript(transcript.New())
	a.Start(ctx)
	defer a.Terminate()

	event := transcriptionEvent("hello")
	a.InputQueue().Enqueue(event)

	select {
	case <-firstEmitted:
	case <-time.After(time.Second):
		t.Fatal("the stream never produced its first message")
	}

	if !a.CancelCurrent() {
		t.Fatal("expected the in-flight turn to be cancelable")
	}

	time.Sleep(50 * time.Millisecond)
	texts := messageTexts(drainResponses(a))
	if len(texts) != 1 || texts[0] != "First sentence." {
		t.Fatalf("expected only the pre-barge-in message, got %v", texts)
	}
	if !event.IsInterruptable() {
		t.Error("expected an abandoned turn's event to stay interruptable")
	}

	// The worker must still accept the follow-up turn.
	a.InputQueue().Enqueue(transcriptionEvent("are you there"))
	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("the worker did not process the follow-up turn")
		case <-time.After(5 * time.Millisecond):
		}
		if len(messageTexts(drainResponses(a))) > 0 {
			return
		}
	}
}

type streamerFunc func(ctx context.Context) iter.Seq2[StreamedItem, error]

func (f streamerFunc) GenerateResponse(
	ctx context.Context, _ string, _ string, _ bool, _ float64,
) iter.Seq2[StreamedItem, error] {
	return f(ctx)
}

type stubAction struct {
	config        actions.Config
	interruptable bool
}

func (a *stubAction) Config() actions.Config { return a.config }
func (a *stubAction) IsInterruptable() bool  { return a.interruptable }
func (a *stubAction) CreateInput(
	conversationID string, params map[string]any, tracker *events.CompletionTracker,
) (actions.Input, error) {
	return actions.NewInput(a.config.Type, conversationID, params, tracker), nil
}

type stubFactory struct{}

func (stubFactory) CreateAction(config actions.Config) (actions.Action, error) {
	return &stubAction{config: config, interruptable: true}, nil
}

func TestFunctionCallDispatchSpeaksAcknowledgementFirst(t *testing.T) {
	arguments, _ := json.Marshal(map[string]any{
		"user_message": "Let me look that up.",
		"query":        "weather",
	})

	a := New(
		Config{
			Type:              "tools",
			GenerateResponses: true,
			Actions:           []actions.Config{{Type: "lookup"}},
		},
		WithStreamingResponder(&scriptedStreamer{items: []StreamedItem{
			{FunctionCall: &actions.FunctionCall{Name: "lookup", Arguments: string(arguments)}},
		}}),
		WithActionFactory(stubFactory{}),
	)

	var entryKinds []transcript.EntryKind
	var responsesAtActionStart int
	a.AttachTranscript(transcript.New(transcript.WithEntryCallback(func(entry transcript.Entry) {
		entryKinds = append(entryKinds, entry.Kind)
		if entry.Kind == transcript.EntryKindActionStart {
			responsesAtActionStart = a.OutputQueue().Len()
		}
	})))

	if err := a.process(context.Background(), transcriptionEvent("what's the weather")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if responsesAtActionStart != 1 {
		t.Errorf("expected the acknowledgement to be emitted before the action-start record, found %d responses", responsesAtActionStart)
	}

	ackEvent, ok := a.OutputQueue().TryDequeue()
	if !ok {
		t.Fatal("expected the acknowledgement message")
	}
	ack, ok := ackEvent.Payload.(MessageResponse)
	if !ok || ack.Message.Text != "Let me look that up." {
		t.Fatalf("expected the user_message acknowledgement, got %+v", ackEvent.Payload)
	}

	actionEvent, ok := a.ActionsQueue().TryDequeue()
	if !ok {
		t.Fatal("expected the action to be enqueued")
	}
	input := actionEvent.Payload
	if input.ActionType != "lookup" {
		t.Errorf("expected action type lookup, got %q", input.ActionType)
	}
	if input.UserMessageTracker == nil || input.UserMessageTracker != ackEvent.Tracker {
		t.Error("expected the action input to carry the acknowledgement's completion tracker")
	}
	if _, ok := a.ActionsQueue().TryDequeue(); ok {
		t.Fatal("expected exactly one action event")
	}

	if len(entryKinds) != 2 ||
		entryKinds[0] != transcript.EntryKindHumanMessage ||
		entryKinds[1] != transcript.EntryKindActionStart {
		t.Errorf("expected human then action-start transcript entries, got %v", entryKinds)
	}
}

func TestQuietActionResultOnlyRecordsTranscript(t *testing.T) {
	a := New(
		Config{Type: "tools", GenerateResponses: true},
		WithStreamingResponder(&scriptedStreamer{items: []StreamedItem{{Text: "should not appear"}}}),
	)
	a.AttachTranscript(transcript.New())

	event := events.NewInterruptible[Input](ActionResultInput{
		InputContext: InputContext{ConversationID: "conversation-1"},
		ActionInput:  actions.NewInput("lookup", "conversation-1", map[string]any{"query": "weather"}, nil),
		ActionOutput: actions.Output{Response: json.RawMessage(`{"temperature":21}`)},
		IsQuiet:      true,
	})
	if err := a.process(context.Background(), event); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if responses := drainResponses(a); len(responses) != 0 {
		t.Fatalf("expected no responses for a quiet result, got %v", responses)
	}

	entries := a.transcript.Entries()
	if len(entries) != 1 || entries[0].Kind != transcript.EntryKindActionFinish {
		t.Fatalf("expected only the action-finish record, got %v", entries)
	}
}

func TestLoudActionResultFeedsANewTurn(t *testing.T) {
	streamer := &scriptedStreamer{items: []StreamedItem{{Text: "It is 21 degrees.", IsInterruptable: true}}}
	a := New(
		Config{Type: "tools", GenerateResponses: true, AllowAgentToBeCutOff: true},
		WithStreamingResponder(streamer),
	)
	a.AttachTranscript(transcript.New())

	event := events.NewInterruptible[Input](ActionResultInput{
		InputContext: InputContext{ConversationID: "conversation-1"},
		ActionInput:  actions.NewInput("lookup", "conversation-1", nil, nil),
		ActionOutput: actions.Output{Response: json.RawMessage(`{"temperature":21}`)},
	})
	if err := a.process(context.Background(), event); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	texts := messageTexts(drainResponses(a))
	if len(texts) != 1 || texts[0] != "It is 21 degrees." {
		t.Fatalf("expected the result to be answered, got %v", texts)
	}
}

func TestGoodbyeEmitsStopAfterMessages(t *testing.T) {
	a := New(
		Config{Type: "echo", EndConversationOnGoodbye: true},
		WithResponder(&scriptedResponder{response: "Take care!"}),
	)
	a.AttachTranscript(transcript.New())

	if err := a.process(context.Background(), transcriptionEvent("alright, goodbye")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	responses := drainResponses(a)
	if len(responses) != 2 {
		t.Fatalf("expected a message then a stop, got %v", responses)
	}
	if _, ok := responses[0].(MessageResponse); !ok {
		t.Errorf("expected the farewell message first, got %+v", responses[0])
	}
	if _, ok := responses[1].(StopResponse); !ok {
		t.Errorf("expected the stop marker last, got %+v", responses[1])
	}
}

func TestNonGoodbyeDoesNotStop(t *testing.T) {
	a := New(
		Config{Type: "echo", EndConversationOnGoodbye: true},
		WithResponder(&scriptedResponder{response: "Sure."}),
	)
	a.AttachTranscript(transcript.New())

	if err := a.process(context.Background(), transcriptionEvent("tell me more")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	for _, response := range drainResponses(a) {
		if _, ok := response.(StopResponse); ok {
			t.Fatal("expected no stop for a regular utterance")
		}
	}
}

func TestFillerAudioPrecedesFirstMessage(t *testing.T) {
	a := New(
		Config{Type: "echo", GenerateResponses: true, SendFillerAudio: true},
		WithStreamingResponder(&scriptedStreamer{items: []StreamedItem{{Text: "Here you go."}}}),
	)
	a.AttachTranscript(transcript.New())

	if err := a.process(context.Background(), transcriptionEvent("hello")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	responses := drainResponses(a)
	if len(responses) != 2 {
		t.Fatalf("expected filler then message, got %v", responses)
	}
	if _, ok := responses[0].(FillerAudioResponse); !ok {
		t.Errorf("expected the filler cue first, got %+v", responses[0])
	}
	if _, ok := responses[1].(MessageResponse); !ok {
		t.Errorf("expected the message second, got %+v", responses[1])
	}
}

func TestMutedAgentDropsInput(t *testing.T) {
	a := New(
		Config{Type: "echo"},
		WithResponder(&scriptedResponder{response: "unreachable"}),
	)
	a.AttachTranscript(transcript.New())
	a.Mute()

	if err := a.process(context.Background(), transcriptionEvent("hello")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if responses := drainResponses(a); len(responses) != 0 {
		t.Fatalf("expected a muted agent to stay silent, got %v", responses)
	}
	if entries := a.transcript.Entries(); len(entries) != 0 {
		t.Fatalf("expected no transcript entries while muted, got %v", entries)
	}
}

func TestResponderErrorDoesNotStopConversation(t *testing.T) {
	a := New(
		Config{Type: "echo"},
		WithResponder(&scriptedResponder{err: context.DeadlineExceeded, shouldStop: true}),
	)
	a.AttachTranscript(transcript.New())

	if err := a.process(context.Background(), transcriptionEvent("hello")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if responses := drainResponses(a); len(responses) != 0 {
		t.Fatalf("expected no responses after a model error, got %v", responses)
	}
}

func TestResponderStopRequestEmitsStop(t *testing.T) {
	a := New(
		Config{Type: "echo"},
		WithResponder(&scriptedResponder{response: "Bye now.", shouldStop: true}),
	)
	a.AttachTranscript(transcript.New())

	if err := a.process(context.Background(), transcriptionEvent("please hang up")); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	responses := drainResponses(a)
	if len(responses) != 2 {
		t.Fatalf("expected a message then a stop, got %v", responses)
	}
	if _, ok := responses[1].(StopResponse); !ok {
		t.Errorf("expected the stop marker, got %+v", responses[1])
	}
}

func TestPhraseGoodbyeDetector(t *testing.T) {
	detector := NewPhraseGoodbyeDetector()

	cases := []struct {
		text string
		want bool
	}{
		{"Goodbye!", true},
		{"ok bye then", true},
		{"talk to you later", true},
		{"buy some milk", false},
		{"tell me a story", false},
	}
	for _, c := range cases {
		got, err := detector.IsGoodbye(context.Background(), c.text)
		if err != nil {
			t.Fatalf("IsGoodbye(%q) failed: %v", c.text, err)
		}
		if got != c.want {
			t.Errorf("IsGoodbye(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	for _, response := range []Response{
		MessageResponse{Message: message.New("hello"), IsInterruptable: true},
		StopResponse{},
		FillerAudioResponse{},
		BackTrackingAudioResponse{},
		FollowUpAudioResponse{SecondsSpoken: 2.5},
	} {
		encoded, err := MarshalResponse(response)
		if err != nil {
			t.Fatalf("failed to marshal %T: %v", response, err)
		}
		decoded, err := UnmarshalResponse(encoded)
		if err != nil {
			t.Fatalf("failed to unmarshal %s: %v", encoded, err)
		}
		if decoded.ResponseType() != response.ResponseType() {
			t.Errorf("round trip changed the type: %T became %T", response, decoded)
		}
	}
}
