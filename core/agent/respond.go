package agent

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/codes"

	"github.com/lariatvoice/lariat-core/core/actions"
	"github.com/lariatvoice/lariat-core/core/events"
	"github.com/lariatvoice/lariat-core/core/message"
	"github.com/lariatvoice/lariat-core/core/transcriber"
)

// process runs one agent turn. The ordering here is load-bearing: transcript
// append happens before any response is emitted, the goodbye check runs
// concurrently with generation, and filler audio precedes the first message.
func (a *Agent) process(ctx context.Context, event *events.Interruptible[Input]) error {
	if a.IsMuted() {
		logger.Debug("agent is muted, dropping input")
		return nil
	}
	if a.transcript == nil {
		return fmt.Errorf("no transcript attached to agent")
	}

	inputContext := event.Payload.Context()

	var transcription transcriber.Transcription
	switch input := event.Payload.(type) {
	case TranscriptionInput:
		a.transcript.AddHumanMessage(
			input.Transcription.Text,
			inputContext.ConversationID,
			input.Transcription.Confidence,
		)
		transcription = input.Transcription
	case ActionResultInput:
		a.transcript.AddActionFinishLog(
			input.ActionInput.ActionType,
			input.ActionInput.ParamsJSON(),
			string(input.ActionOutput.Response),
			inputContext.ConversationID,
		)
		if input.IsQuiet {
			logger.Debug("action result is quiet, not generating a response",
				"action", input.ActionInput.ActionType)
			return nil
		}
		// The result re-enters the turn loop as if the model had heard it
		// spoken with full confidence.
		transcription = transcriber.Transcription{
			Text:       string(input.ActionOutput.Response),
			Confidence: 1,
			IsFinal:    true,
		}
	default:
		return fmt.Errorf("invalid agent input type %T", event.Payload)
	}

	var goodbyeDetected chan bool
	if a.config.EndConversationOnGoodbye && a.goodbye != nil {
		goodbyeDetected = make(chan bool, 1)
		go func() {
			detected, err := a.goodbye.IsGoodbye(ctx, transcription.Text)
			if err != nil {
				logger.Error("failed to check for goodbye", "error", err)
			}
			goodbyeDetected <- detected
		}()
	}

	if a.config.SendFillerAudio {
		a.emitResponse(FillerAudioResponse{}, nil)
	}

	var shouldStop bool
	if a.config.GenerateResponses {
		shouldStop = a.handleGenerateResponse(ctx, transcription, inputContext)
	} else {
		shouldStop = a.handleRespond(ctx, transcription, inputContext)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if shouldStop {
		logger.Debug("agent requested to stop the conversation")
		a.emitResponse(StopResponse{}, inputContext.ResponseTracker)
		return nil
	}

	if goodbyeDetected != nil {
		select {
		case detected := <-goodbyeDetected:
			if detected {
				logger.Debug("goodbye detected, stopping the conversation")
				a.emitResponse(StopResponse{}, inputContext.ResponseTracker)
			}
		case <-time.After(a.config.goodbyeTimeout()):
			logger.Debug("goodbye detection did not finish in time, moving on")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// handleGenerateResponse drains the streaming model, forwarding each text
// chunk as its own message event. A function call surfaced anywhere in the
// stream is remembered and dispatched only after the stream ends.
func (a *Agent) handleGenerateResponse(
	ctx context.Context,
	transcription transcriber.Transcription,
	inputContext InputContext,
) bool {
	spanName := a.spanName()
	ctx, turnSpan := tracer.Start(ctx, spanName+".generate_total")
	defer turnSpan.End()
	_, firstSpan := tracer.Start(ctx, spanName+".generate_first")
	awaitingFirst := true

	var functionCall *actions.FunctionCall
	for item, err := range a.streamingResponder.GenerateResponse(
		ctx,
		transcription.Text,
		inputContext.ConversationID,
		transcription.IsInterrupt,
		transcription.Confidence,
	) {
		if err != nil {
			turnSpan.RecordError(err)
			turnSpan.SetStatus(codes.Error, "response generation failed")
			logger.Error("failed to generate a response", "error", err)
			break
		}
		if item.FunctionCall != nil {
			functionCall = item.FunctionCall
			continue
		}

		if awaitingFirst {
			firstSpan.End()
			awaitingFirst = false
		}

		a.emitMessage(message.New(item.Text), item.IsInterruptable, inputContext.ResponseTracker)
	}
	if awaitingFirst {
		firstSpan.End()
	}

	if functionCall != nil && ctx.Err() == nil {
		a.dispatchFunctionCall(ctx, *functionCall, inputContext)
	}

	return false
}

// handleRespond runs the single-shot model. Model errors are logged and
// treated as no response rather than ending the conversation.
func (a *Agent) handleRespond(
	ctx context.Context,
	transcription transcriber.Transcription,
	inputContext InputContext,
) bool {
	_, span := tracer.Start(ctx, a.spanName()+".respond_total")
	defer span.End()

	response, shouldStop, err := a.responder.Respond(
		ctx,
		transcription.Text,
		inputContext.ConversationID,
		transcription.IsInterrupt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "respond failed")
		logger.Error("failed to respond", "error", err)
		return false
	}

	if response == "" {
		logger.Debug("agent did not generate a response")
		return shouldStop
	}

	a.emitMessage(message.New(response), true, inputContext.ResponseTracker)
	return shouldStop
}

func (a *Agent) emitMessage(
	msg message.Message,
	modelAllowsCutOff bool,
	tracker *events.CompletionTracker,
) {
	interruptable := a.config.AllowAgentToBeCutOff && modelAllowsCutOff

	opts := []events.InterruptibleOption{}
	if !interruptable {
		opts = append(opts, events.WithUninterruptable())
	}
	a.emitResponse(MessageResponse{Message: msg, IsInterruptable: interruptable}, tracker, opts...)
}

// spanName builds the turn span prefix from the agent type and model engine,
// stripped of anything that is not a letter or digit. Computed once.
func (a *Agent) spanName() string {
	a.spanNameOnce.Do(func() {
		name := a.config.Type
		if a.config.ModelName != "" {
			name += "-" + a.config.ModelName
		}
		a.cachedSpanName = "agent." + stripNonAlphanumeric(name)
	})
	return a.cachedSpanName
}

func stripNonAlphanumeric(text string) string {
	stripped := make([]rune, 0, len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			stripped = append(stripped, r)
		}
	}
	return string(stripped)
}
