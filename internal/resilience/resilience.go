// Package resilience provides the retry and circuit breaker wrappers used
// around calls to the model gateway.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen indicates the circuit breaker is open.
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrTooManyRequests indicates the half-open breaker rejected a probe.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
	// ErrExhaustedRetries indicates retry attempts were exhausted.
	ErrExhaustedRetries = errors.New("retry attempts exhausted")
)

// CircuitBreaker stops calling a failing dependency for a while after too
// many consecutive failures.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// CircuitBreakerConfig holds configuration for circuit breakers.
type CircuitBreakerConfig struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int
	// OpenTimeout is how long the breaker stays open before a probe is allowed.
	OpenTimeout time.Duration
	Logger      *slog.Logger
}

// NewCircuitBreaker creates a new circuit breaker. Cancelled calls are not
// counted as failures.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures) //nolint:gosec // bounded by config validation
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &CircuitBreaker{
		name: cfg.Name,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs operation through the circuit breaker. When the breaker is
// open the operation is not called and ErrCircuitOpen is returned.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func(context.Context) error) error {
	_, err := cb.cb.Execute(func() (interface{}, error) {
		return nil, operation(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", cb.name, err)
	}
	return err
}

// State returns the breaker state as "closed", "half-open" or "open".
func (cb *CircuitBreaker) State() string {
	return cb.cb.State().String()
}

// RetryConfig holds configuration for retry operations.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	RandomFactor    float64
	// Retriable reports whether an error may go away on retry. Nil means
	// nothing is retried.
	Retriable func(error) bool
	Logger    *slog.Logger
}

// WithRetry executes an operation with exponential backoff retry. Errors
// that are not retriable are returned unchanged.
func WithRetry(ctx context.Context, cfg RetryConfig, operation func(context.Context) error) error {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	interval := cfg.InitialInterval
	rnd := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // jitter only

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || cfg.Retriable == nil || !cfg.Retriable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := time.Duration(float64(interval) * (1.0 + cfg.RandomFactor*(2*rnd.Float64()-1)))
		if cfg.MaxInterval > 0 && wait > cfg.MaxInterval {
			wait = cfg.MaxInterval
		}

		log.WarnContext(ctx, "Operation failed, retrying",
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"next_interval", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * cfg.Multiplier)
	}

	if cfg.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, cfg.MaxRetries+1, lastErr)
}
