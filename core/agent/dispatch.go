package agent

import (
	"context"

	"github.com/lariatvoice/lariat-core/core/actions"
	"github.com/lariatvoice/lariat-core/core/events"
	"github.com/lariatvoice/lariat-core/core/message"
)

// dispatchFunctionCall turns a model function call into an action event. Any
// failure here drops the call with a log line; the conversation keeps going.
//
// When the call carries a user_message parameter, that acknowledgement is
// spoken first and its completion tracker rides along on the action input so
// the executor can wait for it to finish playing.
func (a *Agent) dispatchFunctionCall(
	ctx context.Context,
	call actions.FunctionCall,
	inputContext InputContext,
) {
	_, span := tracer.Start(ctx, a.spanName()+".dispatch_action")
	defer span.End()

	config, ok := a.actionConfig(call.Name)
	if !ok {
		logger.Error("model called a function the agent is not configured with", "function", call.Name)
		return
	}
	if a.actionFactory == nil {
		logger.Error("cannot dispatch an action without an action factory", "function", call.Name)
		return
	}

	action, err := a.actionFactory.CreateAction(config)
	if err != nil {
		logger.Error("failed to instantiate action", "function", call.Name, "error", err)
		return
	}

	params, err := call.ParseArguments()
	if err != nil {
		logger.Error("failed to parse function call arguments", "function", call.Name, "error", err)
		return
	}

	var userMessageTracker *events.CompletionTracker
	if userMessage, ok := params[actions.UserMessageKey].(string); ok && userMessage != "" {
		userMessageTracker = events.NewCompletionTracker()
		a.emitResponse(
			MessageResponse{Message: message.New(userMessage), IsInterruptable: true},
			userMessageTracker,
		)
	}

	var actionInput actions.Input
	switch typed := action.(type) {
	case actions.VonagePhoneCallAction:
		if inputContext.VonageUUID == "" {
			logger.Error("cannot dispatch a vonage phone-call action without the caller's vonage uuid",
				"function", call.Name)
			return
		}
		actionInput, err = typed.CreateVonagePhoneCallInput(
			inputContext.ConversationID, params, inputContext.VonageUUID, userMessageTracker)
	case actions.TwilioPhoneCallAction:
		if inputContext.TwilioSID == "" {
			logger.Error("cannot dispatch a twilio phone-call action without the caller's twilio sid",
				"function", call.Name)
			return
		}
		actionInput, err = typed.CreateTwilioPhoneCallInput(
			inputContext.ConversationID, params, inputContext.TwilioSID, userMessageTracker)
	default:
		actionInput, err = action.CreateInput(inputContext.ConversationID, params, userMessageTracker)
	}
	if err != nil {
		logger.Error("failed to create action input", "function", call.Name, "error", err)
		return
	}

	a.transcript.AddActionStartLog(
		actionInput.ActionType,
		actionInput.ParamsJSON(),
		inputContext.ConversationID,
	)

	opts := []events.InterruptibleOption{}
	if !action.IsInterruptable() {
		opts = append(opts, events.WithUninterruptable())
	}
	a.emitAction(actionInput, opts...)
}
