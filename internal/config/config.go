// Package config provides the configuration schema, loader, and provider
// registry for the QuestWeaver server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// AgentNames lists the agent roles that accept a per-agent model override.
var AgentNames = []string{
	"intent", "narrator", "definer", "generator",
	"character", "world", "conflict", "mystery",
}

// Config is the root configuration, typically loaded from a YAML file via
// [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Planner   PlannerConfig   `yaml:"planner"`
	Agents    AgentsConfig    `yaml:"agents"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures HTTPS. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the model providers. Each entry's Name is looked
// up in the [Registry].
type ProvidersConfig struct {
	LLM        ProviderEntry `yaml:"llm"`
	Embeddings ProviderEntry `yaml:"embeddings"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider, if required.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g. "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// PostgresDSN is the connection string for the game store. Empty selects
	// the in-memory store (development only; nothing survives a restart).
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions is the width of the event-embedding column. Must
	// match the configured embeddings model. Default 1536.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// PlannerConfig tunes the story planner.
type PlannerConfig struct {
	// AgentTimeout bounds each perspective agent's proposal call.
	// Default 45s.
	AgentTimeout time.Duration `yaml:"agent_timeout"`

	// Temperature for perspective agents. Default 0.8.
	Temperature float64 `yaml:"temperature"`
}

// AgentsConfig carries per-agent tuning.
type AgentsConfig struct {
	// ModelOverrides maps an agent role (see [AgentNames]) to a model name
	// replacing the provider default for that role.
	ModelOverrides map[string]string `yaml:"model_overrides"`
}
