// Package anthropic implements the insight generator's Completer over the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 1024

// Provider calls Claude and returns the raw text of the first text block.
type Provider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

func New(apiKey, model string) *Provider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &Provider{
		client:    &client,
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

// Complete sends one user message and returns the model's text response.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("call anthropic api: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return text, nil
}
