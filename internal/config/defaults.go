package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Task names understood by the scheduler.
const (
	TaskFeedbackAnalysis = "feedback_analysis"
	TaskSQLMaintenance   = "sql_maintenance"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultDBPath = "cloudsignal.db"

	DefaultServerAddr              = ":8787"
	DefaultServerShutdownTimeout   = 10 * time.Second
	DefaultServerReadHeaderTimeout = 5 * time.Second

	DefaultGatewayProvider   = "workersai"
	DefaultGatewayModel      = "@cf/meta/llama-3.1-8b-instruct"
	DefaultGatewayTimeout    = time.Minute
	DefaultGatewayRetryDelay = 2 * time.Second
	DefaultBreakerFailures   = 5
	DefaultBreakerTimeout    = 30 * time.Second
	DefaultWorkersAIBaseURL  = "https://api.cloudflare.com/client/v4"
	DefaultGeminiTemperature = 0.2

	DefaultClassifyMaxTokens = 200
	DefaultChatMaxTokens     = 500
	DefaultChatContextSize   = 20
	DefaultBatchTimeout      = 10 * time.Minute

	DefaultAnalysisSchedule    = "0 */15 * * * *"
	DefaultMaintenanceSchedule = "0 0 3 * * *"
)

var defaults = map[string]any{
	"logger.level": DefaultLogLevel,
	"logger.json":  false,

	"database.path": DefaultDBPath,

	"server.addr":                DefaultServerAddr,
	"server.shutdown_timeout":    DefaultServerShutdownTimeout,
	"server.read_header_timeout": DefaultServerReadHeaderTimeout,

	"gateway.provider":              DefaultGatewayProvider,
	"gateway.model":                 DefaultGatewayModel,
	"gateway.timeout":               DefaultGatewayTimeout,
	"gateway.max_retries":           0,
	"gateway.retry_delay":           DefaultGatewayRetryDelay,
	"gateway.breaker.max_failures":  DefaultBreakerFailures,
	"gateway.breaker.open_timeout":  DefaultBreakerTimeout,
	"gateway.workers_ai.base_url":   DefaultWorkersAIBaseURL,
	"gateway.workers_ai.account_id": "",
	"gateway.workers_ai.api_token":  "",
	"gateway.gemini.base_url":       "",
	"gateway.gemini.api_key":        "",
	"gateway.gemini.temperature":    DefaultGeminiTemperature,

	"analysis.classify_max_tokens": DefaultClassifyMaxTokens,
	"analysis.chat_max_tokens":     DefaultChatMaxTokens,
	"analysis.chat_context_size":   DefaultChatContextSize,
	"analysis.batch_timeout":       DefaultBatchTimeout,

	"scheduler.tasks." + TaskFeedbackAnalysis + ".enabled":  false,
	"scheduler.tasks." + TaskFeedbackAnalysis + ".schedule": DefaultAnalysisSchedule,
	"scheduler.tasks." + TaskSQLMaintenance + ".enabled":    true,
	"scheduler.tasks." + TaskSQLMaintenance + ".schedule":   DefaultMaintenanceSchedule,
}

// setDefaults registers every known key so environment overrides apply to it.
func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Logger:   LoggerConfig{Level: DefaultLogLevel},
		Database: DatabaseConfig{Path: DefaultDBPath},
		Server: ServerConfig{
			Addr:              DefaultServerAddr,
			ShutdownTimeout:   DefaultServerShutdownTimeout,
			ReadHeaderTimeout: DefaultServerReadHeaderTimeout,
		},
		Gateway: GatewayConfig{
			Provider:   DefaultGatewayProvider,
			Model:      DefaultGatewayModel,
			Timeout:    DefaultGatewayTimeout,
			RetryDelay: DefaultGatewayRetryDelay,
			Breaker:    BreakerConfig{MaxFailures: DefaultBreakerFailures, OpenTimeout: DefaultBreakerTimeout},
			WorkersAI:  WorkersAIConfig{BaseURL: DefaultWorkersAIBaseURL},
			Gemini:     GeminiConfig{Temperature: DefaultGeminiTemperature},
		},
		Analysis: AnalysisConfig{
			ClassifyMaxTokens: DefaultClassifyMaxTokens,
			ChatMaxTokens:     DefaultChatMaxTokens,
			ChatContextSize:   DefaultChatContextSize,
			BatchTimeout:      DefaultBatchTimeout,
		},
		Scheduler: SchedulerConfig{
			Tasks: map[string]TaskConfig{
				TaskFeedbackAnalysis: {Enabled: false, Schedule: DefaultAnalysisSchedule},
				TaskSQLMaintenance:   {Enabled: true, Schedule: DefaultMaintenanceSchedule},
			},
		},
	}
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
