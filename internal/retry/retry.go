// Package retry re-runs fallible units of work a fixed number of times
// with a fixed delay between attempts.
//
// There is deliberately no backoff or jitter here: the download engine
// retries whole-file transfers on a small, user-configured budget, and
// a predictable fixed delay is easier to reason about than an adaptive
// one. An attempt that decides the work is unnecessary returns ErrSkip,
// which is success-shaped: it is reported to the caller immediately and
// never consumes retry budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSkip is returned by an attempt to signal "nothing to do here".
// The coordinator treats it as immediate success and hands it back to
// the caller unchanged so skip is never confused with failure.
var ErrSkip = errors.New("unit of work skipped")

// TooManyRetriesError is the terminal failure after the attempt budget
// is exhausted. It wraps the error of the last attempt.
type TooManyRetriesError struct {
	Attempts int
	Last     error
}

func (e *TooManyRetriesError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *TooManyRetriesError) Unwrap() error {
	return e.Last
}

// Coordinator retries an action with fixed attempts and delay.
type Coordinator struct {
	// Attempts is the maximum number of invocations. Values below 1 are
	// treated as 1, which performs no retry at all.
	Attempts int

	// Delay is slept between consecutive attempts. The final failed
	// attempt is not followed by a delay.
	Delay time.Duration

	// OnRetry, when set, is called before each re-attempt with the
	// 1-based number of the attempt that just failed and its error.
	OnRetry func(attempt int, err error)
}

// Do invokes fn until it succeeds, returns ErrSkip, or the attempt
// budget is exhausted, in which case a *TooManyRetriesError wrapping
// the last failure is returned. Attempts run strictly one after
// another; the inter-attempt sleep is interruptible by ctx, and
// cancellation surfaces as the context's error.
func (c Coordinator) Do(ctx context.Context, fn func() error) error {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil || errors.Is(err, ErrSkip) {
			return err
		}
		last = err

		if attempt == attempts {
			break
		}
		if c.OnRetry != nil {
			c.OnRetry(attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Delay):
		}
	}
	return &TooManyRetriesError{Attempts: attempts, Last: last}
}
