// Package httpclient builds the outbound client used to pull snapshot exports.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// New returns a client with a pooled transport. A zero timeout leaves the
// request deadline to the caller's context.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Code)
}

// Backoff controls Retry. Delays double after each failed attempt up to Max.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

var DefaultBackoff = Backoff{Attempts: 3, Base: 200 * time.Millisecond, Max: 2 * time.Second}

// Retry calls fn until it succeeds, returns a non-retriable error, or the
// attempts run out.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	delay := b.Base
	var err error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		if err == nil || !IsRetriable(err) || attempt >= b.Attempts {
			return err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
}

// IsRetriable is true for network timeouts, server errors and throttling.
func IsRetriable(err error) bool {
	var status StatusError
	if errors.As(err, &status) {
		return status.Code >= 500 || status.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
