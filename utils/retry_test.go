package utils

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestRetrySingleAttemptReturnsRawError(t *testing.T) {
	boom := errors.New("boom")
	r := &RetryConfig{MaxAttempts: 1, Logger: NewLoggerTo(io.Discard, LevelError)}

	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return boom
	})
	if err != boom {
		t.Errorf("err: got %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewLoggerTo(io.Discard, LevelError)}

	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("unauthorized")
	r := &RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Logger:      NewLoggerTo(io.Discard, LevelError),
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}

	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("err: got %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryWrapsAfterExhaustion(t *testing.T) {
	boom := errors.New("boom")
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewLoggerTo(io.Discard, LevelError)}

	err := r.Do(context.Background(), "search", func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if err.Error() != "search failed after 2 attempts: boom" {
		t.Errorf("message: got %q", err.Error())
	}
}
