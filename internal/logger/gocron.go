package logger

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// GocronLogger routes gocron's internal logging to a slog logger. gocron is
// chatty at info level, so its Info messages are logged at debug.
type GocronLogger struct {
	log *slog.Logger
}

// NewGocronLogger wraps log for use with gocron.WithLogger.
//
//nolint:ireturn // gocron.WithLogger takes the interface
func NewGocronLogger(log *slog.Logger) gocron.Logger {
	if log == nil {
		log = Discard()
	}
	return &GocronLogger{log: log.With("component", "gocron")}
}

func (l *GocronLogger) Debug(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

func (l *GocronLogger) Error(msg string, args ...any) {
	l.log.Error(msg, args...)
}

func (l *GocronLogger) Info(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

func (l *GocronLogger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}
