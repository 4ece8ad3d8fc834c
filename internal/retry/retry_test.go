package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	c := Coordinator{Attempts: 3, Delay: time.Hour}

	err := c.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestDo_EventualSuccess(t *testing.T) {
	calls := 0
	var retried []int
	c := Coordinator{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(attempt int, err error) { retried = append(retried, attempt) },
	}

	err := c.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
	}
}

func TestDo_Exhaustion(t *testing.T) {
	calls := 0
	lastErr := errors.New("still broken")
	c := Coordinator{Attempts: 3, Delay: time.Millisecond}

	err := c.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("attempt %d: %w", calls, lastErr)
	})

	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	var tooMany *TooManyRetriesError
	if !errors.As(err, &tooMany) {
		t.Fatalf("Do() error = %v, want *TooManyRetriesError", err)
	}
	if tooMany.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", tooMany.Attempts)
	}
	// The terminal error carries the last underlying failure.
	if !errors.Is(err, lastErr) {
		t.Errorf("error chain does not contain the last attempt error")
	}
}

func TestDo_SkipIsImmediate(t *testing.T) {
	calls := 0
	c := Coordinator{Attempts: 5, Delay: time.Hour}

	err := c.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("already done: %w", ErrSkip)
	})
	if !errors.Is(err, ErrSkip) {
		t.Fatalf("Do() error = %v, want ErrSkip", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (skip must not be retried)", calls)
	}
}

func TestDo_SingleAttemptNeverRetries(t *testing.T) {
	calls := 0
	c := Coordinator{Attempts: 1, Delay: time.Hour}

	start := time.Now()
	err := c.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Do() slept %v despite a single attempt", elapsed)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	var tooMany *TooManyRetriesError
	if !errors.As(err, &tooMany) {
		t.Fatalf("Do() error = %v, want *TooManyRetriesError", err)
	}
}

func TestDo_ContextCancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := Coordinator{Attempts: 2, Delay: time.Hour}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := c.Do(ctx, func() error { return errors.New("boom") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
}
