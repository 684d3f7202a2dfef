// Package retry wraps retry-go with the backoff policy shared by the
// embedding and LLM provider adapters.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/custodia-labs/docchat/internal/logger"
)

const (
	defaultAttempts = 3
	defaultDelay    = 200 * time.Millisecond
	defaultMaxDelay = 2 * time.Second
)

// Config controls how many times and how fast a provider call is retried.
type Config struct {
	Attempts uint          `env:"ATTEMPTS" envDefault:"3"`
	Delay    time.Duration `env:"DELAY" envDefault:"200ms"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"2s"`
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
	}
}

// ToRetryOptions converts the config to retry-go options bound to ctx.
func (c Config) ToRetryOptions(ctx context.Context) []retry.Option {
	if c.Attempts == 0 {
		c.Attempts = 1
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.Attempts),
		retry.Delay(c.Delay),
		retry.MaxDelay(c.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. op names the call in debug logs.
func Do[T any](ctx context.Context, cfg Config, op string, fn func() (T, error)) (T, error) {
	opts := append(cfg.ToRetryOptions(ctx), retry.OnRetry(func(n uint, err error) {
		logger.Debug("%s: attempt %d failed: %v", op, n+1, err)
	}))
	return retry.DoWithData(fn, opts...)
}

// StatusError is a non-2xx response from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Permanent marks err so Do stops retrying it.
func Permanent(err error) error {
	return retry.Unrecoverable(err)
}

// IsRetryable reports whether err is worth another attempt.
// Context errors and 4xx responses other than 408 and 429 are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests, se.StatusCode == http.StatusRequestTimeout:
			return true
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return false
		}
	}
	return true
}
