package switchboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/synapse/internal/llm"
)

type stubProvider struct {
	name   string
	result *llm.Result
	err    error
	calls  int
}

func (p *stubProvider) Generate(ctx context.Context, history []llm.Message, systemPrompt string) (*llm.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func (p *stubProvider) Name() string { return p.name }

type stubLogger struct {
	types   []string
	sources []string
	details []string
	err     error
}

func (l *stubLogger) LogSystemEvent(ctx context.Context, eventType, source, severity, details string, chatID int64) (string, error) {
	l.types = append(l.types, eventType)
	l.sources = append(l.sources, source)
	l.details = append(l.details, details)
	return "sys_test", l.err
}

func capacity(provider string) error {
	return &llm.CapacityError{Provider: provider, Err: errors.New("429 resource exhausted")}
}

func TestGeneratePrimaryHappyPath(t *testing.T) {
	primary := &stubProvider{name: "gemini", result: &llm.Result{Content: "hello", ModelName: "gemini-2.0-flash"}}
	fallback := &stubProvider{name: "openai"}
	fast := &stubProvider{name: "ollama"}
	logger := &stubLogger{}

	sb := New(primary, fallback, fast, logger)
	res, err := sb.Generate(context.Background(), nil, "", false)

	require.NoError(t, err)
	assert.Equal(t, "hello", res.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, fallback.calls)
	assert.Zero(t, fast.calls)
	assert.Empty(t, logger.types, "no fallback event on the happy path")
}

func TestGenerateFailsOverOnCapacity(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: capacity("gemini")}
	fallback := &stubProvider{name: "openai", result: &llm.Result{Content: "from fallback"}}
	fast := &stubProvider{name: "ollama"}
	logger := &stubLogger{}

	sb := New(primary, fallback, fast, logger)
	res, err := sb.Generate(context.Background(), nil, "", false)

	require.NoError(t, err)
	assert.Equal(t, "from fallback", res.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Zero(t, fast.calls)

	require.Len(t, logger.types, 1)
	assert.Equal(t, "FALLBACK", logger.types[0])
	assert.Equal(t, "gemini", logger.sources[0])
	assert.Contains(t, logger.details[0], "Switched from gemini to openai")
}

func TestGenerateFallsThroughToFast(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: capacity("gemini")}
	fallback := &stubProvider{name: "openai", err: capacity("openai")}
	fast := &stubProvider{name: "ollama", result: &llm.Result{Content: "local answer"}}
	logger := &stubLogger{}

	sb := New(primary, fallback, fast, logger)
	res, err := sb.Generate(context.Background(), nil, "", false)

	require.NoError(t, err)
	assert.Equal(t, "local answer", res.Content)
	require.Len(t, logger.types, 2)
	assert.Equal(t, []string{"gemini", "openai"}, logger.sources)
}

func TestGenerateNonCapacityErrorPropagates(t *testing.T) {
	authErr := errors.New("401 invalid api key")
	primary := &stubProvider{name: "gemini", err: authErr}
	fallback := &stubProvider{name: "openai", result: &llm.Result{Content: "never"}}
	fast := &stubProvider{name: "ollama"}

	sb := New(primary, fallback, fast, &stubLogger{})
	_, err := sb.Generate(context.Background(), nil, "", false)

	require.ErrorIs(t, err, authErr)
	assert.Zero(t, fallback.calls, "auth failure must not trigger failover")
	assert.Zero(t, fast.calls)
}

func TestGenerateUseFastSkipsChain(t *testing.T) {
	primary := &stubProvider{name: "gemini", result: &llm.Result{Content: "expensive"}}
	fallback := &stubProvider{name: "openai"}
	fast := &stubProvider{name: "ollama", result: &llm.Result{Content: "cheap"}}

	sb := New(primary, fallback, fast, &stubLogger{})
	res, err := sb.Generate(context.Background(), nil, "", true)

	require.NoError(t, err)
	assert.Equal(t, "cheap", res.Content)
	assert.Zero(t, primary.calls)
	assert.Zero(t, fallback.calls)
	assert.Equal(t, 1, fast.calls)
}

func TestGenerateChainRestartsAtPrimary(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: capacity("gemini")}
	fallback := &stubProvider{name: "openai", result: &llm.Result{Content: "ok"}}
	fast := &stubProvider{name: "ollama"}

	sb := New(primary, fallback, fast, nil)
	_, err := sb.Generate(context.Background(), nil, "", false)
	require.NoError(t, err)
	_, err = sb.Generate(context.Background(), nil, "", false)
	require.NoError(t, err)

	assert.Equal(t, 2, primary.calls, "every call starts at the primary again")
	assert.Equal(t, 2, fallback.calls)
}

func TestGenerateSurvivesAuditLogFailure(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: capacity("gemini")}
	fallback := &stubProvider{name: "openai", result: &llm.Result{Content: "still works"}}
	fast := &stubProvider{name: "ollama"}
	logger := &stubLogger{err: errors.New("graph down")}

	sb := New(primary, fallback, fast, logger)
	res, err := sb.Generate(context.Background(), nil, "", false)

	require.NoError(t, err)
	assert.Equal(t, "still works", res.Content)
}
