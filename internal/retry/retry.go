// Package retry runs an operation under a bounded attempt policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is matched by the error returned when every attempt failed
var ErrExhausted = errors.New("retries exhausted")

// Policy bounds how often and how quickly an operation is retried.
// Every failure is retried the same way; there is no notion of a permanent error.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy matches the portal's tolerance: 3 attempts, 5s apart
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 5 * time.Second}
}

// ExhaustedError carries the last failure after the bound was reached
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// Budget is the longest Do can take when each attempt is capped at perAttempt
func (p Policy) Budget(perAttempt time.Duration) time.Duration {
	n := p.attempts()
	return time.Duration(n)*perAttempt + time.Duration(n-1)*p.Delay
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds or the policy is used up.
// attempt starts at 1. The delay is only waited between attempts.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	n := p.attempts()
	var last error
	for attempt := 1; attempt <= n; attempt++ {
		if last = fn(ctx, attempt); last == nil {
			return nil
		}
		if attempt == n {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w (last error: %w)", attempt, err, last)
		}
	}
	return &ExhaustedError{Attempts: n, Last: last}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
