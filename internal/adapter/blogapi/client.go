package blogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/quill/internal/domain"
	"github.com/oklog/ulid/v2"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// TokenSource supplies the bearer token for authenticated requests.
// An empty token sends the request anonymously.
type TokenSource interface {
	AccessToken() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

func (f TokenFunc) AccessToken() string { return f() }

// Client implements the auth, post and admin repositories over the blog REST API
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

var (
	_ domain.AuthRepository  = (*Client)(nil)
	_ domain.PostRepository  = (*Client)(nil)
	_ domain.AdminRepository = (*Client)(nil)
)

// NewClient creates a new blog API client. A zero timeout uses the default.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryDelay: baseRetryDelay,
		logger:     logger,
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes a single API call
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string

	// token overrides the token source when set
	token string
	// anonymous skips the Authorization header entirely
	anonymous bool
	// retry enables backoff on 5xx; only idempotent reads set it
	retry bool
}

// jsonRequest builds a request with a JSON encoded body
func jsonRequest(method, path string, payload any) (request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	return request{method: method, path: path, body: body, contentType: "application/json"}, nil
}

// doRequest performs an HTTP request to the blog API.
// Requests marked retry back off exponentially on 5xx responses; every
// other request is a single attempt.
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, error) {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL = reqURL + "?" + r.query.Encode()
	}

	attempts := 1
	if r.retry {
		attempts += maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var bodyReader io.Reader
		if r.body != nil {
			bodyReader = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, reqURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		requestID := ulid.Make().String()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		if !r.anonymous {
			token := r.token
			if token == "" {
				token = c.tokens.AccessToken()
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}

		c.logger.Debug("api request", "method", r.method, "url", reqURL, "request_id", requestID, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("api request failed", "error", err, "request_id", requestID)
			return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrServerOffline, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		apiErr := statusError(resp.StatusCode, body)

		if r.retry && resp.StatusCode >= 500 {
			lastErr = apiErr
			c.logger.Warn("api server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", r.path,
				"request_id", requestID,
			)
			continue
		}

		c.logger.Error("api request error",
			"status", resp.StatusCode,
			"path", r.path,
			"request_id", requestID,
			"body", truncate(string(body), 512),
		)
		return nil, apiErr
	}

	c.logger.Error("api request failed after retries", "error", lastErr, "url", reqURL)
	return nil, lastErr
}

// getJSON performs an idempotent GET and decodes the response into out
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.doRequest(ctx, request{method: http.MethodGet, path: path, query: query, retry: true})
	if err != nil {
		return err
	}
	return decode(body, out)
}

// decode unmarshals a response body, reporting failures as malformed responses
func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
