package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/dspy-go/pkg/core"
	"github.com/XiaoConstantine/dspy-go/pkg/llms"
)

// OllamaProvider is the fast/local backend. It is the last resort of the
// failover chain and therefore never reports a capacity failure: a local
// model has no quota, only hard errors.
type OllamaProvider struct {
	llm   *llms.OllamaLLM
	model string
}

func NewOllamaProvider(model, baseURL string) (*OllamaProvider, error) {
	opts := []llms.OllamaOption{
		llms.WithBaseURL(baseURL),
		llms.WithOpenAIAPI(),
	}
	ollamaLLM, err := llms.NewOllamaLLM(core.ModelID(model), opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama llm: %w", err)
	}
	return &OllamaProvider{llm: ollamaLLM, model: model}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Generate(ctx context.Context, history []Message, systemPrompt string) (*Result, error) {
	resp, err := p.llm.Generate(ctx, flattenHistory(history, systemPrompt))
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	return &Result{
		Content:    resp.Content,
		TokenUsage: estimateTokens(resp.Content),
		ModelName:  p.model,
	}, nil
}

// flattenHistory renders history as a single tagged transcript for backends
// that take one prompt string instead of structured turns.
func flattenHistory(history []Message, systemPrompt string) string {
	var b strings.Builder
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	for _, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		fmt.Fprintf(&b, "[%s]: %s\n", role, msg.Content)
	}
	b.WriteString("[assistant]: ")
	return b.String()
}

// estimateTokens approximates usage for backends that do not report it.
func estimateTokens(text string) int {
	return len(text) / 4
}
