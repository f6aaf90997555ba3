package adapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		outputs, failures int
		want              string
	}{
		{3, 0, OutcomeSuccess},
		{3, 1, OutcomePartial},
		{3, 3, OutcomeFailed},
		{0, 0, OutcomeSuccess},
	}
	for _, tt := range tests {
		if got := Outcome(tt.outputs, tt.failures); got != tt.want {
			t.Errorf("Outcome(%d, %d) = %q, want %q", tt.outputs, tt.failures, got, tt.want)
		}
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_Exhausts(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	err := Retry(t.Context(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return sentinel
	}, nil)
	if !errors.Is(err, sentinel) {
		t.Errorf("Retry() error = %v, want wrapping %v", err, sentinel)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_PermanentStops(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Retry(t.Context(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return permanent
	}, func(err error) bool { return errors.Is(err, permanent) })
	if !errors.Is(err, permanent) {
		t.Errorf("Retry() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := Retry(ctx, 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
