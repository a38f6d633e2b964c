// Package retry provides retry logic with exponential backoff for destination writes
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/config"
)

// Errors
var (
	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// DoWithRetry executes fn with retry logic according to the provided configuration.
// fn receives the zero-based attempt number.
// It returns ErrMaxRetriesExceeded joined with the last error if all retries fail.
func DoWithRetry(ctx context.Context, cfg *config.RetryConfig, fn func(attempt int) error) error {
	var err error

	for i := range cfg.MaxAttempts + 1 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err = fn(i)
		if err == nil {
			return nil // Success
		}

		// If this was the last attempt, break the loop
		if i == cfg.MaxAttempts {
			break
		}

		// Calculate backoff delay for next retry
		delay := calculateBackoff(cfg, i)

		// Wait with context cancellation support
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			// Continue to next retry
		}
	}

	// Return the error if all retries failed
	return errors.Join(ErrMaxRetriesExceeded, err)
}

// calculateBackoff computes the backoff delay for a given attempt:
// BaseDelay * Multiplier^attempt, capped at MaxDelay.
func calculateBackoff(cfg *config.RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay >= float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}
