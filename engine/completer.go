package engine

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// Completer is the external language-model collaborator: prompt text in,
// response text (or an explicit failure) out. The engine never retries on
// its behalf; retry policy belongs to the caller.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicCompleter calls the Claude API.
type AnthropicCompleter struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter wraps an Anthropic client. Zero values select the
// default model and token limit.
func NewAnthropicCompleter(client *anthropic.Client, model string, maxTokens int64) *AnthropicCompleter {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &AnthropicCompleter{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends the prompt as a single user message and concatenates the
// text blocks of the reply.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// PromptEcho is the offline completer: it answers with the prompt it was
// handed, wrapped in markers, so the assembled context can be inspected
// without an API key.
type PromptEcho struct{}

func (PromptEcho) Complete(ctx context.Context, prompt string) (string, error) {
	return fmt.Sprintf(
		"(offline mode: the prompt that would be sent to the model is shown below)\n\n--- START OF PROMPT ---\n%s\n--- END OF PROMPT ---",
		prompt,
	), nil
}
