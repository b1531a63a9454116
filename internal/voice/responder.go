package voice

import (
	"context"
	"log/slog"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/provider"
)

// fallbackApology is returned when both generation and the outcome
// message are unavailable.
const fallbackApology = "I'm sorry, I encountered an error processing your request."

// Responder turns a dispatch outcome into spoken-style response text.
// With no generator configured it always uses the outcome message.
type Responder struct {
	generator provider.ResponseGenerator
}

func NewResponder(generator provider.ResponseGenerator) *Responder {
	return &Responder{generator: generator}
}

// Respond produces the response text for a processed command. Generator
// failures degrade to the handler's own message rather than surfacing
// an error to the caller.
func (r *Responder) Respond(ctx context.Context, transcript string, intent domain.Intent, outcome Outcome) string {
	if r.generator != nil {
		kind := provider.ResponseFailure
		if outcome.Success {
			kind = provider.ResponseSuccess
		}
		text, err := r.generator.Generate(ctx, transcript, string(intent), outcome.Message, kind)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			slog.Warn("response generation failed, using handler message",
				"intent", intent, "error", err)
		}
	}
	if outcome.Message != "" {
		return outcome.Message
	}
	return fallbackApology
}
