// Package config loads codescout's on-disk YAML configuration, expanding
// environment variable references in every string value, layered under
// github.com/joho/godotenv for local .env files.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/codescout/pkg/observability"
)

// Config is the root configuration document for one codescout instance.
type Config struct {
	Logging       LoggingConfig        `yaml:"logging"`
	Observability observability.Config `yaml:"observability"`
	LLM           LLMConfig            `yaml:"llm"`
	Storage       StorageConfig        `yaml:"storage"`
	Accountant    AccountantConfig     `yaml:"accountant"`
}

// LoggingConfig configures pkg/logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// LLMConfig selects and configures the LLM providers.
type LLMConfig struct {
	Primary   string           `yaml:"primary"`
	Anthropic AnthropicConfig  `yaml:"anthropic"`
	OpenAI    OpenAIConfig     `yaml:"openai"`
}

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// StorageConfig configures every backend in internal/storage.
type StorageConfig struct {
	WorkingDirectory string       `yaml:"working_directory"`
	VectorPersistDir string       `yaml:"vector_persist_dir"`
	Postgres         PostgresConfig `yaml:"postgres"`
}

// PostgresConfig configures the session/event-log backend.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// AccountantConfig overrides the default resource bounds.
type AccountantConfig struct {
	MaxLLMCallsPerQuery  int `yaml:"max_llm_calls_per_query"`
	MaxAgentHopsPerQuery int `yaml:"max_agent_hops_per_query"`
	MaxTotalCodeTokens   int `yaml:"max_total_code_tokens"`
	MaxToolCallsPerQuery int `yaml:"max_tool_calls_per_query"`
	MaxFilesPerQuery     int `yaml:"max_files_per_query"`
}

// Defaults returns a Config with every ambient default filled in: a
// runnable configuration with no file at all.
func Defaults() *Config {
	return &Config{
		Logging:       LoggingConfig{Level: "info", Format: "simple"},
		Observability: observability.Config{},
		LLM: LLMConfig{
			Primary:   "anthropic",
			Anthropic: AnthropicConfig{Model: "claude-sonnet-4-20250514"},
			OpenAI:    OpenAIConfig{Model: "gpt-4o"},
		},
		Storage: StorageConfig{
			WorkingDirectory: ".",
			Postgres:         PostgresConfig{MaxConns: 10},
		},
		Accountant: AccountantConfig{
			MaxLLMCallsPerQuery:  10,
			MaxAgentHopsPerQuery: 21,
			MaxTotalCodeTokens:   25000,
			MaxFilesPerQuery:     10,
		},
	}
}

// Load reads and parses path, applying .env overrides and environment
// variable expansion before unmarshaling into Config. An empty path
// returns Defaults() unchanged.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	_ = godotenv.Load() // a missing .env file is not an error

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	expanded := expandStrings(doc)

	// Round-trip through yaml so the env-expanded generic map re-decodes
	// into the typed Config.
	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("re-encoding expanded config: %w", err)
	}
	if err := yaml.Unmarshal(reencoded, cfg); err != nil {
		return nil, fmt.Errorf("decoding expanded config %q: %w", path, err)
	}

	return cfg, nil
}
