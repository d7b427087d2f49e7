// Package config provides configuration loading, validation, and management
// for CloudSignal. Values come from defaults, an optional YAML file, and
// CLOUDSIGNAL_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrValidation wraps every configuration validation failure.
var ErrValidation = errors.New("config validation error")

// EnvPrefix is the prefix for environment overrides, e.g.
// CLOUDSIGNAL_GATEWAY_WORKERS_AI_API_TOKEN.
const EnvPrefix = "CLOUDSIGNAL"

// Config holds the application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls log verbosity and format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"                validate:"required"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    validate:"min=1s,max=5m"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"min=1s,max=1m"`
}

// GatewayConfig selects and configures the model provider.
type GatewayConfig struct {
	Provider   string          `mapstructure:"provider"    validate:"oneof=workersai gemini"`
	Model      string          `mapstructure:"model"       validate:"required"`
	Timeout    time.Duration   `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	MaxRetries int             `mapstructure:"max_retries" validate:"min=0,max=5"`
	RetryDelay time.Duration   `mapstructure:"retry_delay" validate:"min=0,max=1m"`
	Breaker    BreakerConfig   `mapstructure:"breaker"`
	WorkersAI  WorkersAIConfig `mapstructure:"workers_ai"`
	Gemini     GeminiConfig    `mapstructure:"gemini"`
}

// BreakerConfig controls the circuit breaker around model calls. A zero
// MaxFailures disables it.
type BreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures" validate:"min=0,max=100"`
	OpenTimeout time.Duration `mapstructure:"open_timeout" validate:"min=0,max=1h"`
}

// WorkersAIConfig holds Cloudflare Workers AI credentials.
type WorkersAIConfig struct {
	BaseURL   string `mapstructure:"base_url" validate:"required,url"`
	AccountID string `mapstructure:"account_id"`
	APIToken  string `mapstructure:"api_token"`
}

// GeminiConfig holds Google Gemini credentials and sampling settings.
type GeminiConfig struct {
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL     string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
}

// AnalysisConfig bounds the prompts sent to the model.
type AnalysisConfig struct {
	ClassifyMaxTokens int `mapstructure:"classify_max_tokens" validate:"min=16,max=4096"`
	ChatMaxTokens     int `mapstructure:"chat_max_tokens"     validate:"min=16,max=8192"`
	ChatContextSize   int `mapstructure:"chat_context_size"   validate:"min=1,max=200"`
	// BatchTimeout bounds a scheduled batch run; zero disables the bound.
	BatchTimeout time.Duration `mapstructure:"batch_timeout" validate:"min=0,max=24h"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task on a six-field cron schedule (seconds first).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// LoadConfig reads the YAML file at path (a missing file is not an error),
// applies environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tag constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
