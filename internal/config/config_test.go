package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logger:
  level: debug
  json: true
gateway:
  provider: gemini
  model: gemini-2.0-flash
  gemini:
    api_key: test-key
analysis:
  chat_context_size: 10
scheduler:
  tasks:
    feedback_analysis:
      enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Logger.JSON)
	assert.Equal(t, "gemini", cfg.Gateway.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gateway.Model)
	assert.Equal(t, "test-key", cfg.Gateway.Gemini.APIKey)
	assert.Equal(t, 10, cfg.Analysis.ChatContextSize)
	assert.Equal(t, DefaultChatMaxTokens, cfg.Analysis.ChatMaxTokens)

	task := cfg.Scheduler.Tasks[TaskFeedbackAnalysis]
	assert.True(t, task.Enabled)
	assert.Equal(t, DefaultAnalysisSchedule, task.Schedule)
	assert.True(t, cfg.Scheduler.Tasks[TaskSQLMaintenance].Enabled)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CLOUDSIGNAL_GATEWAY_WORKERS_AI_API_TOKEN", "env-token")
	t.Setenv("CLOUDSIGNAL_GATEWAY_TIMEOUT", "30s")
	t.Setenv("CLOUDSIGNAL_SERVER_ADDR", "127.0.0.1:9000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Gateway.WorkersAI.APIToken)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", "gateway:\n  provider: openai\n"},
		{"bad log level", "logger:\n  level: verbose\n"},
		{"context size zero", "analysis:\n  chat_context_size: 0\n"},
		{"enabled task without schedule", "scheduler:\n  tasks:\n    extra:\n      enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}
