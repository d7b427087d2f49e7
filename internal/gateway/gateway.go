// Package gateway provides the model gateway client: a prompt goes in with a
// token budget and raw text comes out. Providers are selected by configuration.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/cloudsignal/internal/config"
	"github.com/edgard/cloudsignal/internal/logger"
	"github.com/edgard/cloudsignal/internal/resilience"
)

// ErrNoCredentials is returned by New when the selected provider is missing
// its credentials.
var ErrNoCredentials = errors.New("model gateway credentials are missing")

// Client sends a prompt to a hosted text-completion model.
//
// Run returns the model text, or "" when the provider answered without a
// usable output field. Transport and API errors are returned to the caller.
type Client interface {
	Run(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

// Run calls f.
func (f ClientFunc) Run(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// Unavailable returns a Client whose every call fails with err. It stands in
// for a provider that could not be created.
//
//nolint:ireturn
func Unavailable(err error) Client {
	return ClientFunc(func(context.Context, string, int) (string, error) {
		return "", err
	})
}

// New creates the Client for cfg.Provider.
func New(ctx context.Context, cfg config.GatewayConfig, log *slog.Logger) (Client, error) {
	if log == nil {
		log = logger.Discard()
	}
	log.Info("Initializing model gateway", "provider", cfg.Provider, "model", cfg.Model)

	switch cfg.Provider {
	case "workersai":
		client, err := NewWorkersAI(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workers AI client: %w", err)
		}
		return client, nil
	case "gemini":
		client, err := NewGemini(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown model gateway provider: %q", cfg.Provider)
	}
}

// guard runs provider calls through the retry policy and, when enabled, the
// circuit breaker. The breaker sees one outcome per retried call.
type guard struct {
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

func newGuard(name string, cfg config.GatewayConfig, retriable func(error) bool, log *slog.Logger) guard {
	g := guard{
		retry: resilience.RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryDelay,
			MaxInterval:     4 * cfg.RetryDelay,
			Multiplier:      2,
			RandomFactor:    0.1,
			Retriable:       retriable,
			Logger:          log,
		},
	}
	if cfg.Breaker.MaxFailures > 0 {
		g.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        name,
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
			Logger:      log,
		})
	}
	return g
}

func (g guard) do(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var text string
	op := func(ctx context.Context) error {
		return resilience.WithRetry(ctx, g.retry, func(ctx context.Context) error {
			var err error
			text, err = call(ctx)
			return err
		})
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(ctx, op)
	} else {
		err = op(ctx)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}
