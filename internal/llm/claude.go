package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

// ClaudeProvider is an alternative cloud backend selectable for any slot.
type ClaudeProvider struct {
	client *anthropic.Client
	model  string
}

func NewClaudeProvider(apiKey, model, baseURL string) *ClaudeProvider {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &ClaudeProvider{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) Generate(ctx context.Context, history []Message, systemPrompt string) (*Result, error) {
	messages := make([]anthropic.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "user":
			messages = append(messages, anthropic.NewUserTextMessage(msg.Content))
		case "assistant", "model":
			messages = append(messages, anthropic.NewAssistantTextMessage(msg.Content))
		}
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		Messages:  messages,
		MaxTokens: 2048,
	}
	if systemPrompt != "" {
		req.System = systemPrompt
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, classifyErr(p.Name(), err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return nil, fmt.Errorf("claude: no response content")
	}

	return &Result{
		Content:    *resp.Content[0].Text,
		TokenUsage: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		ModelName:  p.model,
	}, nil
}
