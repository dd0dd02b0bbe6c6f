// Package config loads and validates the workflow configuration.
//
// All configuration comes from a YAML file with ${VAR:-default} env var
// expansion, plus a small set of env overrides so wrapper scripts can
// redirect paths without editing config files.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a repair run.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`       // completion backend
	Workflow  WorkflowConfig  `yaml:"workflow"`  // iteration bounds and models
	Telemetry TelemetryConfig `yaml:"telemetry"` // log locations and cadence
	History   HistoryConfig   `yaml:"history"`   // run archive
}

// LLMConfig selects and tunes the completion backend.
type LLMConfig struct {
	Provider          string  `yaml:"provider"` // "openai" or "mock"
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"` // optional OpenAI-compatible endpoint
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
	MaxRetries        int     `yaml:"max_retries"`
}

// WorkflowConfig bounds the repair loop.
type WorkflowConfig struct {
	MaxIterations int               `yaml:"max_iterations"`
	TargetScore   float64           `yaml:"target_score"` // pylint score that counts as done
	AgentModels   map[string]string `yaml:"agent_models"` // optional per-agent model override
}

// TelemetryConfig locates the session logs.
type TelemetryConfig struct {
	LogDir            string `yaml:"log_dir"`
	LoggerFlushEvery  int    `yaml:"logger_flush_every"`
	TrackerFlushEvery int    `yaml:"tracker_flush_every"`
}

// DefaultHistoryPath is the SQLite file the run archive lives in when no
// config or env override names another. The history subcommand's --db
// flag defaults to the same value.
const DefaultHistoryPath = "refactor_swarm.db"

// HistoryConfig locates the cross-session run archive.
type HistoryConfig struct {
	Path string `yaml:"path"` // SQLite file for the run archive
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// ExpandEnvWithDefaults is the exported form of the expansion helper.
func ExpandEnvWithDefaults(s string) string {
	return expandEnvWithDefaults(s)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes, applying env
// expansion, env overrides and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a usable configuration without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.RequestsPerMinute == 0 {
		c.LLM.RequestsPerMinute = 60
	}
	if c.LLM.Burst == 0 {
		c.LLM.Burst = 5
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}
	if c.Workflow.MaxIterations == 0 {
		c.Workflow.MaxIterations = 3
	}
	if c.Workflow.TargetScore == 0 {
		c.Workflow.TargetScore = 8.0
	}
	if c.Telemetry.LogDir == "" {
		c.Telemetry.LogDir = "logs"
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
}

// applyEnvOverrides lets wrapper scripts redirect paths without touching
// config files.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("SWARM_LOG_DIR"); dir != "" {
		c.Telemetry.LogDir = dir
	}
	if path := os.Getenv("SWARM_HISTORY_DB"); path != "" {
		c.History.Path = path
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("invalid llm.provider: %q (must be \"openai\" or \"mock\")", c.LLM.Provider)
	}
	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (or set OPENAI_API_KEY)")
	}
	if c.LLM.RequestsPerMinute < 1 {
		return fmt.Errorf("invalid llm.requests_per_minute: %d", c.LLM.RequestsPerMinute)
	}
	if c.Workflow.MaxIterations < 1 {
		return fmt.Errorf("invalid workflow.max_iterations: %d (must be >= 1)", c.Workflow.MaxIterations)
	}
	if c.Workflow.TargetScore < 0 || c.Workflow.TargetScore > 10 {
		return fmt.Errorf("invalid workflow.target_score: %.2f (must be 0-10)", c.Workflow.TargetScore)
	}
	if c.Telemetry.LoggerFlushEvery < 0 || c.Telemetry.TrackerFlushEvery < 0 {
		return fmt.Errorf("telemetry flush cadence must not be negative")
	}
	return nil
}
