// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package backoff runs an operation a bounded number of times with capped
// exponential delays between attempts.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	cbackoff "github.com/cenkalti/backoff/v5"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
)

// Policy describes how many times an operation is attempted and how long to
// wait between attempts.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// BaseDelay is the wait after the first failure.
	BaseDelay time.Duration
	// MaxDelay caps every individual wait. Zero means uncapped.
	MaxDelay time.Duration
}

// Delay returns the wait that follows the given zero-based failed attempt:
// min(BaseDelay * 2^attempt, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.BaseDelay <= 0 {
		return 0
	}

	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Schedule returns the waits between consecutive attempts.
func (p Policy) Schedule() []time.Duration {
	if p.Attempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, 0, p.Attempts-1)
	for i := 0; i < p.Attempts-1; i++ {
		delays = append(delays, p.Delay(i))
	}
	return delays
}

// Worst returns the total time spent waiting if every attempt fails.
func (p Policy) Worst() time.Duration {
	var total time.Duration
	for _, d := range p.Schedule() {
		total += d
	}
	return total
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Label    string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Label, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err came from running out of attempts.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

// Permanent marks err so that Do stops without retrying.
func Permanent(err error) error {
	return cbackoff.Permanent(err)
}

// schedule adapts a Policy to the cenkalti BackOff interface without jitter.
type schedule struct {
	policy  Policy
	attempt int
}

func (s *schedule) NextBackOff() time.Duration {
	d := s.policy.Delay(s.attempt)
	s.attempt++
	return d
}

func (s *schedule) Reset() {
	s.attempt = 0
}

// Do calls action until it succeeds, returns a permanent error, the context
// ends, or the attempt budget runs out. In the last case the returned error is
// an *ExhaustedError wrapping the final failure.
func Do[T any](ctx context.Context, p Policy, label string, action func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var tries int
	var stopped bool
	operation := func() (T, error) {
		tries++
		result, err := action(ctx)
		var permanent *cbackoff.PermanentError
		if err != nil && errors.As(err, &permanent) {
			stopped = true
		}
		return result, err
	}

	notify := func(err error, next time.Duration) {
		slog.WarnContext(ctx, "operation failed, retrying",
			"label", label,
			"attempt", tries,
			"max_attempts", attempts,
			"backoff", next.String(),
			logging.ErrKey, err,
		)
	}

	result, err := cbackoff.Retry(ctx, operation,
		cbackoff.WithBackOff(&schedule{policy: p}),
		cbackoff.WithMaxTries(uint(attempts)),
		cbackoff.WithNotify(notify),
	)
	if err == nil {
		if tries > 1 {
			slog.DebugContext(ctx, "operation succeeded after retry", "label", label, "attempts", tries)
		}
		return result, nil
	}

	if stopped || ctx.Err() != nil || tries < attempts {
		return result, err
	}

	slog.WarnContext(ctx, "operation failed after all attempts",
		"label", label,
		"attempts", tries,
		logging.ErrKey, err,
	)
	return result, &ExhaustedError{Label: label, Attempts: tries, Err: err}
}
