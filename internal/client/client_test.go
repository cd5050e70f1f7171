package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func newTestClient(baseURL string, maxRetries int) *Client {
	return New(Config{
		BaseURL:    baseURL,
		Username:   "bot",
		APIToken:   "token",
		Timeout:    5,
		MaxRetries: maxRetries,
	}, arbor.NewLogger())
}

func TestSend_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 3)
	var result struct {
		OK bool `json:"ok"`
	}
	if err := c.Get(context.Background(), "/thing", nil, &result); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !result.OK {
		t.Errorf("result not unmarshalled")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one failure, one retry)", calls)
	}
}

func TestSend_RateLimitHonorsRetryAfter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 3)
	start := time.Now()
	if err := c.Get(context.Background(), "/thing", nil, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("retried after %v, want at least the hinted 1s", elapsed)
	}
}

func TestSend_NoRetryOnAuthOrNotFound(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"not found", http.StatusNotFound, KindNotFound},
		{"bad request", http.StatusBadRequest, KindPermanent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			c := newTestClient(server.URL, 3)
			err := c.Get(context.Background(), "/thing", nil, nil)
			if KindOf(err) != tc.wantKind {
				t.Errorf("kind = %q, want %q (err: %v)", KindOf(err), tc.wantKind, err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1 (no retry)", calls)
			}
		})
	}
}

func TestSend_MaxRetriesExceeded(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL, 1)
	err := c.Get(context.Background(), "/thing", nil, nil)
	if err == nil {
		t.Fatalf("want error after exhausting retries")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindTransient {
		t.Errorf("err = %v, want wrapped transient APIError", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (initial + one retry)", calls)
	}
}

func TestSend_CorrelationIDForwarded(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 1)
	ctx := WithCorrelationID(context.Background(), "run-42")
	if err := c.Get(ctx, "/thing", nil, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "run-42" {
		t.Errorf("X-Request-Id = %q, want run-42", got)
	}
}

func TestSend_CancellationStopsRetryLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := newTestClient(server.URL, 5)
	start := time.Now()
	err := c.Get(ctx, "/thing", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("retry loop ran %v past cancellation", elapsed)
	}
}

func TestBackoffDuration(t *testing.T) {
	transient := &APIError{Kind: KindTransient}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{10, maxBackoff},
	}
	for _, tc := range tests {
		if got := backoffDuration(transient, tc.attempt); got != tc.want {
			t.Errorf("backoffDuration(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}

	hinted := &APIError{Kind: KindRateLimited, RetryAfter: 7 * time.Second}
	if got := backoffDuration(hinted, 0); got != 7*time.Second {
		t.Errorf("hinted backoff = %v, want 7s", got)
	}
}

func TestAPIError_Retryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindAuth, false},
		{KindNotFound, false},
		{KindPermanent, false},
		{KindRateLimited, true},
		{KindTransient, true},
	}
	for _, tc := range tests {
		e := &APIError{Kind: tc.kind}
		if e.Retryable() != tc.want {
			t.Errorf("Retryable(%s) = %v, want %v", tc.kind, e.Retryable(), tc.want)
		}
	}
}
