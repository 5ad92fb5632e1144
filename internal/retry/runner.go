package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/metrics"
)

// Error is returned when an operation keeps failing after every attempt.
type Error struct {
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Runner executes labeled operations under a Policy. A zero Runner uses
// DefaultPolicy. It is safe for concurrent use.
type Runner struct {
	Policy Policy
}

// NewRunner returns a Runner for the given policy.
func NewRunner(p Policy) *Runner {
	return &Runner{Policy: p}
}

// Permanent marks err as not worth retrying. Do returns it unwrapped
// immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Run executes op until it succeeds, returns a permanent error, the attempts
// run out or ctx is canceled.
func (r *Runner) Run(ctx context.Context, label string, op func(context.Context) error) error {
	_, err := Do(ctx, r, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do executes op under r's policy and returns its first successful result.
// Exhaustion yields an *Error wrapping the last failure. Cancellation yields
// the context's cause.
func Do[T any](ctx context.Context, r *Runner, label string, op func(context.Context) (T, error)) (T, error) {
	p := DefaultPolicy
	if r != nil && r.Policy.MaxAttempts > 0 {
		p = r.Policy
	}

	start := time.Now()
	attempts := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		return op(ctx)
	},
		backoff.WithBackOff(p.NewBackOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RecordRetry(label)
			log.Warn().
				Err(err).
				Str("operation", label).
				Int("attempt", attempts).
				Int("max_attempts", p.MaxAttempts).
				Dur("retry_in", next).
				Msg("Remote operation failed, retrying")
		}),
	)
	metrics.RecordRemoteCall(label, err, time.Since(start))

	if err == nil {
		if attempts > 1 {
			log.Debug().Str("operation", label).Int("attempts", attempts).Msg("Remote operation succeeded after retry")
		}
		return result, nil
	}

	var zero T
	if ctxErr := context.Cause(ctx); ctxErr != nil && errors.Is(err, ctxErr) {
		return zero, err
	}
	if attempts < p.MaxAttempts {
		// Permanent error: backoff has already unwrapped it.
		return zero, err
	}
	log.Error().
		Err(err).
		Str("operation", label).
		Int("attempts", attempts).
		Msg("Remote operation failed, retries exhausted")
	return zero, &Error{Op: label, Attempts: attempts, Err: err}
}
