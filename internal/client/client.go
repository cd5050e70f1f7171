package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// ErrorKind classifies a failed remote call.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindTransient   ErrorKind = "transient"
	KindPermanent   ErrorKind = "permanent"
)

// APIError is a classified remote-call failure. Only KindRateLimited
// and KindTransient are retried.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (%s): %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransient
}

// KindOf returns the classification of err, or KindPermanent when err
// is not an APIError.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindPermanent
}

// IsNotFound reports whether err is a classified not-found failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

type correlationKey struct{}

// WithCorrelationID attaches a correlation identifier that every
// outgoing call made with this context will carry.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the identifier attached to ctx, or empty.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

const maxBackoff = 30 * time.Second

// Config holds the connection parameters for one remote platform.
type Config struct {
	BaseURL    string
	Username   string
	APIToken   string
	Timeout    int // seconds
	MaxRetries int
}

// Client issues authenticated HTTP calls against one remote platform,
// retrying transient failures with bounded exponential backoff. Safe
// for concurrent use; the underlying connection pool is shared.
type Client struct {
	rest       *resty.Client
	maxRetries int
	logger     arbor.ILogger
}

// New creates a client for one platform.
func New(cfg Config, logger arbor.ILogger) *Client {
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.Username, cfg.APIToken).
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		rest:       rest,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Get performs a GET request and unmarshals the JSON response into result.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, result interface{}) error {
	return c.Send(ctx, http.MethodGet, path, nil, query, result)
}

// Post performs a POST request with a JSON payload.
func (c *Client) Post(ctx context.Context, path string, payload, result interface{}) error {
	return c.Send(ctx, http.MethodPost, path, payload, nil, result)
}

// Put performs a PUT request with a JSON payload.
func (c *Client) Put(ctx context.Context, path string, payload, result interface{}) error {
	return c.Send(ctx, http.MethodPut, path, payload, nil, result)
}

// Send issues one logical call, retrying rate-limited and transient
// failures up to the configured attempt budget. Auth, not-found, and
// 4xx validation failures are never retried.
func (c *Client) Send(ctx context.Context, method, path string, payload interface{}, query map[string]string, result interface{}) error {
	correlationID := CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	var lastErr *APIError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req := c.rest.R().
			SetContext(ctx).
			SetHeader("X-Request-Id", correlationID)
		if payload != nil {
			req.SetBody(payload)
		}
		if query != nil {
			req.SetQueryParams(query)
		}
		if result != nil {
			req.SetResult(result)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &APIError{Kind: KindTransient, Message: err.Error()}
		} else {
			lastErr = classify(resp)
			if lastErr == nil {
				return nil
			}
		}

		if !lastErr.Retryable() {
			return lastErr
		}

		wait := backoffDuration(lastErr, attempt)
		c.logger.Warn().
			Str("correlation_id", correlationID).
			Str("method", method).
			Str("path", path).
			Int("attempt", attempt+1).
			Str("kind", string(lastErr.Kind)).
			Str("wait", wait.String()).
			Msg("Retrying remote call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// HealthCheck performs a minimal authenticated read against the given
// path to verify reachability and credentials without side effects.
func (c *Client) HealthCheck(ctx context.Context, path string, query map[string]string) error {
	return c.Get(ctx, path, query, nil)
}

// classify maps a completed HTTP response to an APIError, or nil on success.
func classify(resp *resty.Response) *APIError {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &APIError{Kind: KindAuth, StatusCode: code, Message: resp.String()}
	case code == http.StatusNotFound:
		return &APIError{Kind: KindNotFound, StatusCode: code, Message: resp.String()}
	case code == http.StatusTooManyRequests:
		return &APIError{
			Kind:       KindRateLimited,
			StatusCode: code,
			Message:    resp.String(),
			RetryAfter: retryAfterHint(resp),
		}
	case code >= 500:
		return &APIError{Kind: KindTransient, StatusCode: code, Message: resp.String()}
	default:
		return &APIError{Kind: KindPermanent, StatusCode: code, Message: resp.String()}
	}
}

// retryAfterHint reads the Retry-After header when present.
func retryAfterHint(resp *resty.Response) time.Duration {
	if header := resp.Header().Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// backoffDuration honors a rate-limit hint, otherwise backs off
// exponentially: 1s, 2s, 4s, ... capped at maxBackoff.
func backoffDuration(apiErr *APIError, attempt int) time.Duration {
	if apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
