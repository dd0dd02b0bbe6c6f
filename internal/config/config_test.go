package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
llm:
  provider: mock
  model: ${SWARM_MODEL:-gpt-4o-mini}
workflow:
  max_iterations: 5
  target_score: 9.0
telemetry:
  log_dir: ${SWARM_LOG_DIR:-logs}
history:
  path: runs.db
`

func TestLoadFromBytesExpandsDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Workflow.MaxIterations)
	assert.Equal(t, 9.0, cfg.Workflow.TargetScore)
	assert.Equal(t, "logs", cfg.Telemetry.LogDir)
	assert.Equal(t, "runs.db", cfg.History.Path)
	// defaults fill unset fields
	assert.Equal(t, 60, cfg.LLM.RequestsPerMinute)
}

func TestLoadFromBytesEnvExpansion(t *testing.T) {
	t.Setenv("SWARM_MODEL", "gpt-4o")
	cfg, err := LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestEnvOverridesRedirectPaths(t *testing.T) {
	t.Setenv("SWARM_LOG_DIR", "/tmp/session-logs")
	t.Setenv("SWARM_HISTORY_DB", "/tmp/archive.db")

	cfg, err := LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/session-logs", cfg.Telemetry.LogDir)
	assert.Equal(t, "/tmp/archive.db", cfg.History.Path)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.LLM.Provider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown provider", "llm:\n  provider: groq\n"},
		{"openai without key", "llm:\n  provider: openai\n"},
		{"target score out of range", "llm:\n  provider: mock\nworkflow:\n  target_score: 11\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			_, err := LoadFromBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("SWARM_SET", "value")
	assert.Equal(t, "value", ExpandEnvWithDefaults("${SWARM_SET:-fallback}"))
	assert.Equal(t, "fallback", ExpandEnvWithDefaults("${SWARM_UNSET_VAR:-fallback}"))
	assert.Equal(t, "", ExpandEnvWithDefaults("${SWARM_UNSET_VAR}"))
}

func TestDefaultIsValid(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}
