package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))

	require.NoError(t, err)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "incoming", cfg.Queues.Incoming)
	assert.Equal(t, "enrichment", cfg.Queues.Enrichment)
	assert.Equal(t, "gemini", cfg.Primary.Provider)
	assert.Equal(t, "openai", cfg.Fallback.Provider)
	assert.Equal(t, "ollama", cfg.Fast.Provider)
	assert.Equal(t, 8600, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.PopTimeout())
	assert.Equal(t, time.Second, cfg.ErrorSleep())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
log_level = "debug"

[graph]
uri = "bolt://memgraph:7687"

[agent]
user_id = 777
name = "Vasilisa"

[llm_primary]
provider = "claude"
model = "claude-3-5-haiku-latest"
api_key = "sk-test"

[pipeline]
pop_timeout_ms = 500

[server]
port = 9000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "bolt://memgraph:7687", cfg.Graph.URI)
	assert.Equal(t, int64(777), cfg.Agent.UserID)
	assert.Equal(t, "Vasilisa", cfg.Agent.Name)
	assert.Equal(t, "claude", cfg.Primary.Provider)
	assert.Equal(t, "sk-test", cfg.Primary.APIKey)
	assert.Equal(t, 500*time.Millisecond, cfg.PopTimeout())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Sections the file omits keep their defaults.
	assert.Equal(t, "openai", cfg.Fallback.Provider)
	assert.Equal(t, "brain", cfg.Queues.Brain)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[graph\nuri="), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRAPH_URI", "bolt://remote:7687")
	t.Setenv("NATS_URL", "nats://remote:4222")
	t.Setenv("AGENT_USER_ID", "424242")
	t.Setenv("PRIMARY_API_KEY", "env-key")
	t.Setenv("SYNAPSE_PORT", "8700")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))

	require.NoError(t, err)
	assert.Equal(t, "bolt://remote:7687", cfg.Graph.URI)
	assert.Equal(t, "nats://remote:4222", cfg.NATS.URL)
	assert.Equal(t, int64(424242), cfg.Agent.UserID)
	assert.Equal(t, "env-key", cfg.Primary.APIKey)
	assert.Equal(t, 8700, cfg.Server.Port)
}

func TestEnvInvalidIntIgnored(t *testing.T) {
	t.Setenv("AGENT_USER_ID", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))

	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Agent.UserID)
}
