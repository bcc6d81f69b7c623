package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// retryConfig holds the configuration for retry logic.
type retryConfig struct {
	// maxAttempts is the maximum number of attempts (including the initial request).
	maxAttempts int

	// initialBackoff is the initial backoff duration.
	initialBackoff time.Duration

	// maxBackoff is the maximum backoff duration.
	maxBackoff time.Duration

	// backoffMultiplier is the multiplier for exponential backoff.
	backoffMultiplier float64
}

// retryWithBackoff executes fn with exponential backoff retry logic. fn
// returns the error class of its failure so the loop can decide whether a
// retry is worthwhile. It respects context cancellation and adds jitter to
// prevent thundering herd.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, cfg retryConfig, fn func() (ErrorClass, error)) error {
	var lastErr error
	backoff := cfg.initialBackoff

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		errorClass, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= cfg.maxAttempts {
			break
		}

		fetchRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		// Add jitter (±20% randomness)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.backoffMultiplier)
		if backoff > cfg.maxBackoff {
			backoff = cfg.maxBackoff
		}
	}

	fetchRetryExhaustedTotal.Inc()
	logger.Warn().
		Int("max_attempts", cfg.maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, cfg.maxAttempts, lastErr)
}
