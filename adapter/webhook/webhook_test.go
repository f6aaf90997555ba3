package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/pixport/adapter"
	"github.com/justapithecus/pixport/iox"
)

func testEvent() *adapter.ExportCompletedEvent {
	return &adapter.ExportCompletedEvent{
		EventType:  adapter.EventTypeExportCompleted,
		RunID:      "run-001",
		SessionID:  "sess-1",
		DocumentID: 12,
		Outcome:    adapter.OutcomePartial,
		Outputs: []adapter.OutputResult{
			{Path: "out/diffuse.tga", Format: "tga", Location: "out/diffuse.tga", Bytes: 1024},
			{Path: "out/normal.png", Format: "png", Error: "encode out/normal.png: converter wrote to stderr"},
		},
		Failures:   1,
		Timestamp:  "2026-10-18T12:00:00Z",
		DurationMs: 1500,
	}
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))
	return a
}

func TestPublish_Success(t *testing.T) {
	var received adapter.ExportCompletedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if received.RunID != "run-001" {
		t.Errorf("RunID = %q, want run-001", received.RunID)
	}
	if received.EventType != adapter.EventTypeExportCompleted {
		t.Errorf("EventType = %q, want %q", received.EventType, adapter.EventTypeExportCompleted)
	}
	if len(received.Outputs) != 2 || received.Outputs[1].Error == "" {
		t.Errorf("Outputs = %+v", received.Outputs)
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer tok"}})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tok")
	}
}

func TestPublish_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL, Retries: 3})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestPublish_5xxExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL, Retries: 2})
	err := a.Publish(t.Context(), testEvent())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("Publish() error = %v, want StatusError 502", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestPublish_4xxFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL, Retries: 3})
	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("Publish() error = nil, want 401 failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := newAdapter(t, Config{URL: ts.URL, Retries: 5, Backoff: time.Hour})
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish() error = %v, want deadline exceeded", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without URL error = nil")
	}
	if _, err := New(Config{URL: "http://x", Retries: -1}); err == nil {
		t.Error("New() with negative retries error = nil")
	}
	a, err := New(Config{URL: "http://x"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
}
