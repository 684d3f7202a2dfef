// Package ratelimit paces calls to hosted model providers.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

const (
	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"

	// HeaderRemainingRequests is the OpenAI-style remaining request quota.
	HeaderRemainingRequests = "X-Ratelimit-Remaining-Requests"

	// DefaultBackoff applies when a 429 carries no Retry-After.
	DefaultBackoff = time.Second
)

// Limiter combines a proactive token bucket with reactive backoff from
// provider responses.
type Limiter struct {
	mu         sync.Mutex
	bucket     *rate.Limiter
	blockUntil time.Time // From Retry-After
	remaining  int       // -1 until a response reports it
}

// New creates a limiter allowing rps requests per second with the given
// burst. A non-positive rps disables proactive throttling.
func New(rps float64, burst int) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		bucket:    rate.NewLimiter(limit, burst),
		remaining: -1,
	}
}

// Wait blocks until it's safe to make a request.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	until := l.blockUntil
	l.mu.Unlock()

	if d := time.Until(until); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Observe records quota headers and returns a RateLimitError for 429 responses.
func (l *Limiter) Observe(resp *http.Response) error {
	if resp == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if v := resp.Header.Get(HeaderRemainingRequests); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			l.remaining = n
		}
	}

	if resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	wait := DefaultBackoff
	if v := resp.Header.Get(HeaderRetryAfter); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			wait = time.Duration(seconds) * time.Second
		}
	}
	l.blockUntil = time.Now().Add(wait)
	return &RateLimitError{RetryAfter: wait}
}

// Remaining returns the last reported request quota, or -1 if unknown.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// RateLimitError reports a 429 from a provider.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Unwrap lets callers match domain.ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}
