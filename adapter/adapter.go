// Package adapter defines the notification boundary for finished exports.
//
// Adapters publish one ExportCompletedEvent per export run to a downstream
// system. The export pipeline owns adapter lifecycle; callers supply
// configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventTypeExportCompleted is the EventType of every ExportCompletedEvent.
const EventTypeExportCompleted = "export_completed"

// Outcomes.
const (
	OutcomeSuccess = "success"
	// OutcomePartial means at least one output failed and at least one succeeded.
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// OutputResult describes one export target's result.
type OutputResult struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Location string `json:"location,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ExportCompletedEvent is published when an export run finishes.
type ExportCompletedEvent struct {
	EventType  string         `json:"event_type"`
	RunID      string         `json:"run_id"`
	SessionID  string         `json:"session_id,omitempty"`
	DocumentID int            `json:"document_id"`
	Outcome    string         `json:"outcome"`
	Outputs    []OutputResult `json:"outputs"`
	Failures   int            `json:"failures"`
	Timestamp  string         `json:"timestamp"` // RFC 3339
	DurationMs int64          `json:"duration_ms"`
}

// Outcome classifies a run from its output and failure counts.
func Outcome(outputs, failures int) string {
	switch {
	case failures == 0:
		return OutcomeSuccess
	case failures < outputs:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// Adapter publishes export completion events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *ExportCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultBackoff is the delay before the first retry; each later retry
// doubles it.
const DefaultBackoff = 500 * time.Millisecond

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when fn succeeds, when permanent reports the
// error as not worth retrying, or when ctx is done.
func Retry(ctx context.Context, retries int, backoff time.Duration, fn func(context.Context) error, permanent func(error) bool) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff << (i - 1)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
