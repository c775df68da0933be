package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type ProviderConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type GraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type NATSConfig struct {
	URL string `toml:"url"`
}

// QueueConfig names the durable queues connecting the stages. Incoming and
// outgoing are the boundary with the chat transport; enrichment is the
// Thinker-to-Scribe sidecar for semantic annotations.
type QueueConfig struct {
	Incoming    string `toml:"incoming"`
	Brain       string `toml:"brain"`
	Analyst     string `toml:"analyst"`
	Coordinator string `toml:"coordinator"`
	Responder   string `toml:"responder"`
	Outgoing    string `toml:"outgoing"`
	Enrichment  string `toml:"enrichment"`
}

type AgentConfig struct {
	UserID int64  `toml:"user_id"`
	Name   string `toml:"name"`
}

type PipelineConfig struct {
	PopTimeoutMS  int `toml:"pop_timeout_ms"`
	ErrorSleepMS  int `toml:"error_sleep_ms"`
	ContextLimit  int `toml:"context_limit"`
	ThoughtsLimit int `toml:"thoughts_limit"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

type Config struct {
	Graph    GraphConfig    `toml:"graph"`
	NATS     NATSConfig     `toml:"nats"`
	Queues   QueueConfig    `toml:"queues"`
	Agent    AgentConfig    `toml:"agent"`
	Primary  ProviderConfig `toml:"llm_primary"`
	Fallback ProviderConfig `toml:"llm_fallback"`
	Fast     ProviderConfig `toml:"llm_fast"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// Load reads the TOML file at path, applies defaults, then environment
// overrides. A missing file is not an error: everything can come from env.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Graph.URI == "" {
		c.Graph.URI = "bolt://localhost:7687"
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.Queues.Incoming == "" {
		c.Queues.Incoming = "incoming"
	}
	if c.Queues.Brain == "" {
		c.Queues.Brain = "brain"
	}
	if c.Queues.Analyst == "" {
		c.Queues.Analyst = "analyst"
	}
	if c.Queues.Coordinator == "" {
		c.Queues.Coordinator = "coordinator"
	}
	if c.Queues.Responder == "" {
		c.Queues.Responder = "responder"
	}
	if c.Queues.Outgoing == "" {
		c.Queues.Outgoing = "outgoing"
	}
	if c.Queues.Enrichment == "" {
		c.Queues.Enrichment = "enrichment"
	}
	if c.Agent.Name == "" {
		c.Agent.Name = "Agent"
	}
	if c.Primary.Provider == "" {
		c.Primary = ProviderConfig{Provider: "gemini", Model: "gemini-2.0-flash"}
	}
	if c.Fallback.Provider == "" {
		c.Fallback = ProviderConfig{Provider: "openai", Model: "gpt-4o-mini"}
	}
	if c.Fast.Provider == "" {
		c.Fast = ProviderConfig{Provider: "ollama", Model: "gemma3:4b", BaseURL: "http://localhost:11434"}
	}
	if c.Pipeline.PopTimeoutMS <= 0 {
		c.Pipeline.PopTimeoutMS = 2000
	}
	if c.Pipeline.ErrorSleepMS <= 0 {
		c.Pipeline.ErrorSleepMS = 1000
	}
	if c.Pipeline.ContextLimit <= 0 {
		c.Pipeline.ContextLimit = 15
	}
	if c.Pipeline.ThoughtsLimit <= 0 {
		c.Pipeline.ThoughtsLimit = 5
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8600
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) applyEnv() {
	c.Graph.URI = envStr("GRAPH_URI", c.Graph.URI)
	c.Graph.User = envStr("GRAPH_USER", c.Graph.User)
	c.Graph.Password = envStr("GRAPH_PASSWORD", c.Graph.Password)
	c.NATS.URL = envStr("NATS_URL", c.NATS.URL)
	c.Agent.UserID = envInt64("AGENT_USER_ID", c.Agent.UserID)
	c.Agent.Name = envStr("AGENT_NAME", c.Agent.Name)
	c.Primary.APIKey = envStr("PRIMARY_API_KEY", c.Primary.APIKey)
	c.Fallback.APIKey = envStr("FALLBACK_API_KEY", c.Fallback.APIKey)
	c.Fast.BaseURL = envStr("OLLAMA_BASE_URL", c.Fast.BaseURL)
	c.Server.Port = int(envInt64("SYNAPSE_PORT", int64(c.Server.Port)))
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
}

// PopTimeout is the bounded wait on every queue pop; it doubles as the
// shutdown responsiveness of each stage loop.
func (c *Config) PopTimeout() time.Duration {
	return time.Duration(c.Pipeline.PopTimeoutMS) * time.Millisecond
}

func (c *Config) ErrorSleep() time.Duration {
	return time.Duration(c.Pipeline.ErrorSleepMS) * time.Millisecond
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
