package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

var fast = Backoff{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond}

func TestRetryRecoversFromServerErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, func() error {
		calls++
		if calls < 3 {
			return StatusError{URL: "x", Code: http.StatusBadGateway}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnClientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, func() error {
		calls++
		return StatusError{URL: "x", Code: http.StatusNotFound}
	})
	var status StatusError
	if !errors.As(err, &status) || status.Code != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("404 should not be retried, got %d calls", calls)
	}
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, func() error {
		calls++
		return StatusError{URL: "x", Code: http.StatusServiceUnavailable}
	})
	if err == nil || calls != fast.Attempts {
		t.Fatalf("expected failure after %d calls, got %d calls and %v", fast.Attempts, calls, err)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, fast, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
