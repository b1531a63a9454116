package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const classifySystemPrompt = `You classify short voice commands for a task and project manager. Return ONLY a JSON object with these fields:
- "intent": one of the allowed intents listed in the user message, or "unknown"
- "confidence": a number between 0.0 and 1.0
- "entities": an object mapping entity names to string values; use only these keys when present: "task_name", "project_name", "item_name", "assignee", "status", "priority", "due_date"

Rules:
- Pick the single best matching intent; use "unknown" when nothing fits
- Extract entity values exactly as spoken, trimmed of filler words
- Omit entity keys you cannot extract; never invent values
- Return valid JSON only, no markdown fencing or explanation`

const respondSuccessSystem = `You phrase the result of a successful voice command for a task manager. Reply with one short, natural, conversational sentence confirming what was done. No preamble, no JSON, no quotes around the reply.`

const respondFailureSystem = `You phrase the result of a failed voice command for a task manager. Reply with one short, helpful sentence explaining what went wrong and inviting the user to try again. No preamble, no JSON, no quotes around the reply.`

// Claude wraps the Anthropic API for fallback intent classification and
// response synthesis.
type Claude struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClaude creates a Claude client with the given API key and model.
func NewClaude(apiKey, model string) *Claude {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Claude{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// Classify asks the model to classify a transcript against the closed
// intent vocabulary. Malformed replies surface as *ParseError so the
// caller can degrade to an unknown intent rather than fail.
func (c *Claude) Classify(ctx context.Context, transcript string, vocabulary []string) (*Classification, error) {
	var sb strings.Builder
	sb.WriteString("Allowed intents: ")
	sb.WriteString(strings.Join(vocabulary, ", "))
	sb.WriteString("\n\nVoice command: \"")
	sb.WriteString(transcript)
	sb.WriteString("\"")

	text, err := c.complete(ctx, "classify", classifySystemPrompt, sb.String(), 512)
	if err != nil {
		return nil, err
	}

	text = stripFences(text)
	var result Classification
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, &ParseError{Raw: text, Err: err}
	}
	if result.Entities == nil {
		result.Entities = map[string]string{}
	}
	return &result, nil
}

// Generate phrases an action outcome as a conversational reply.
func (c *Claude) Generate(ctx context.Context, transcript, intent, outcomeMessage string, kind ResponseKind) (string, error) {
	system := respondSuccessSystem
	if kind == ResponseFailure {
		system = respondFailureSystem
	}

	var sb strings.Builder
	sb.WriteString("Original command: \"")
	sb.WriteString(transcript)
	sb.WriteString("\"\nIntent: ")
	sb.WriteString(intent)
	sb.WriteString("\nResult: ")
	sb.WriteString(outcomeMessage)

	text, err := c.complete(ctx, "generate", system, sb.String(), 256)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Claude) complete(ctx context.Context, op, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", &Error{Provider: "anthropic", Op: op, Err: err}
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", &Error{Provider: "anthropic", Op: op, Err: fmt.Errorf("no text content in API response")}
	}
	return text, nil
}

// stripFences removes markdown code fencing some models wrap around JSON.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
