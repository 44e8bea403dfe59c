package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	userAgent       = "spindle-go/0.1"
	requestIDHeader = "X-Request-Id"
)

// TokenSource provides bearer tokens for the platform API. Defined at the
// consumer (api package) per Go convention "accept interfaces, return
// structs". The auth package provides the real implementation.
type TokenSource interface {
	// AccessToken returns a valid token, refreshing or re-exchanging
	// behind the scenes as needed.
	AccessToken(ctx context.Context) (string, error)

	// ForceReauth discards any cached token and performs a fresh API-key
	// exchange. Used when the server rejects a token mid-flight.
	ForceReauth(ctx context.Context) (string, error)
}

// Client is an HTTP client for the Spindle platform API.
// It handles request construction, bearer authentication, a single
// re-auth retry on 401, and error classification. There are no backoff
// loops: every other failure surfaces immediately to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient creates a platform API client.
// baseURL is typically "https://api.spindle.dev".
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// do executes an HTTP request against the platform API and returns the
// response body. The payload is marshaled to bytes exactly once so the
// 401 retry can replay it. On a 401 for a request not yet retried, the
// token manager is forced through a fresh exchange and the request is
// reissued once with the new token; a second 401 is terminal.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	op := method + " " + path

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("api: encoding %s request: %w", op, err)
		}

		body = b
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("api: obtaining token for %s: %w", op, err)
	}

	// retried is deliberately a per-call local: concurrent in-flight
	// requests each get exactly one re-auth attempt of their own.
	retried := false

	for {
		resp, err := c.doOnce(ctx, method, c.baseURL+path, token, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
			}

			return nil, &TransportError{Op: op, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			if readErr != nil {
				return nil, fmt.Errorf("api: reading %s response: %w", op, readErr)
			}

			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return respBody, nil
		}

		if resp.StatusCode == http.StatusUnauthorized && !retried {
			retried = true

			c.logger.Debug("token rejected, re-authenticating once",
				slog.String("method", method),
				slog.String("path", path),
			)

			fresh, reauthErr := c.tokens.ForceReauth(ctx)
			if reauthErr != nil {
				return nil, fmt.Errorf("api: re-authenticating after 401: %w", reauthErr)
			}

			token = fresh

			continue
		}

		if readErr != nil {
			respBody = []byte("(failed to read response body)")
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get(requestIDHeader),
			Message:    strings.TrimSpace(string(respBody)),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// doOnce executes a single HTTP request (no retry). The body is rewound
// from the marshaled bytes on every attempt.
func (c *Client) doOnce(ctx context.Context, method, url, token string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// get issues a GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	return decode(http.MethodGet, path, body, out)
}

// post issues a POST with the given payload. When out is non-nil the
// response body is decoded into it; pass nil for endpoints that return
// no body.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return decode(http.MethodPost, path, body, out)
}

// put issues a PUT with the given payload, discarding any response body.
func (c *Client) put(ctx context.Context, path string, payload any) error {
	_, err := c.do(ctx, http.MethodPut, path, payload)

	return err
}

// del issues a DELETE, discarding any response body.
func (c *Client) del(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)

	return err
}

func decode(method, path string, body []byte, out any) error {
	if len(body) == 0 {
		return fmt.Errorf("api: %s %s returned an empty body", method, path)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decoding %s %s response: %w", method, path, err)
	}

	return nil
}
