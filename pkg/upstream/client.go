// Package upstream talks to the hosted language-model API. Every query is a
// single GET carrying the prompt, API key and model as query parameters.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxBodySize     = 10 << 20
	maxErrorSnippet = 512
)

// Config configures a Client.
type Config struct {
	// BaseURL is the upstream endpoint, e.g. "https://llm.example.com/gpt/api.php"
	BaseURL string

	// APIKey is sent as the api_key query parameter.
	APIKey string

	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a transport error or
	// a 5xx/429 answer. Zero means exactly one outbound call.
	MaxRetries int

	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64

	// RateBurst is the limiter bucket size; at least 1 when RateLimit is set.
	RateBurst int
}

// Client queries the upstream API.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a Client. httpClient may be nil to use a default one.
func NewClient(config Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if _, err := BuildURL(config.BaseURL, "", "", ""); err != nil {
		return nil, err
	}
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return c, nil
}

// Query sends prompt to the upstream API and returns the JSON body.
func (c *Client) Query(ctx context.Context, prompt, model string) (json.RawMessage, error) {
	target, err := BuildURL(c.config.BaseURL, prompt, c.config.APIKey, model)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.config.RetryBackoff * time.Duration(attempt)
			c.logger.Warn("retrying upstream request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("waiting to retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		body, err := c.do(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, target string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(target, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, newTransportError(target, fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("upstream responded",
		zap.Int("status", httpResp.StatusCode),
		zap.Int("body_size", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: snippet(body)}
	}

	if !json.Valid(body) {
		return nil, &DecodeError{Body: snippet(body)}
	}

	return json.RawMessage(body), nil
}

// transportError never holds the full request URL: *url.Error is unwrapped
// and only the redacted endpoint is kept.
type transportError struct {
	endpoint string
	err      error
}

func newTransportError(target string, err error) *transportError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &transportError{endpoint: Redact(target), err: err}
}

func (e *transportError) Error() string { return fmt.Sprintf("GET %s: %v", e.endpoint, e.err) }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return false
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet] + "..."
	}
	return s
}
