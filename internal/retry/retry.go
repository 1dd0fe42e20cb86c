package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns the retry configuration used for model-server calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// ErrorChecker reports whether a failed attempt should be retried.
type ErrorChecker func(err error, statusCode int) bool

// Options configures retry behavior
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker
	Logger       *slog.Logger
	Name         string
}

// calculateDelay computes the delay for the given attempt using exponential backoff
func (c Config) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do calls fn until it succeeds, returns an error the checker rejects, or
// the retry budget runs out. fn reports the HTTP status it saw (0 if none).
func Do[T any](ctx context.Context, opts Options, fn func(attempt int) (T, int, error)) (T, error) {
	var zero T
	var lastErr error
	var lastStatus int
	attempts := opts.Config.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := opts.Config.calculateDelay(attempt - 1)
			if opts.Logger != nil {
				opts.Logger.Debug("retrying", "name", opts.Name, "attempt", attempt+1, "of", attempts, "delay", delay)
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, status, err := fn(attempt)
		if err == nil {
			if attempt > 0 && opts.Logger != nil {
				opts.Logger.Info("request succeeded after retry", "name", opts.Name, "attempt", attempt+1)
			}
			return result, nil
		}
		lastErr, lastStatus = err, status

		if opts.ErrorChecker == nil || !opts.ErrorChecker(err, status) {
			return zero, err
		}
		if opts.Logger != nil {
			opts.Logger.Warn("retryable error", "name", opts.Name, "attempt", attempt+1, "of", attempts, "status", status, "error", err)
		}
	}

	return zero, &ExhaustedError{
		Name:           opts.Name,
		MaxAttempts:    attempts,
		LastStatusCode: lastStatus,
		Err:            lastErr,
	}
}

// Transient retries network errors, 429 and 5xx responses. Context
// cancellation is never retried.
func Transient(err error, statusCode int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return true
	}
	if statusCode != 0 {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Name           string
	MaxAttempts    int
	LastStatusCode int
	Err            error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Name, e.MaxAttempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
