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
	"time"
)

// CallTimeout bounds every remote operation. A call that has not resolved
// by then fails with a NetworkError.
const CallTimeout = 60 * time.Second

// TokenProvider supplies the bearer token attached to every request. The
// token may be stale; an expired token surfaces as an HTTPError like any
// other rejected request.
type TokenProvider interface {
	AccessToken() (string, error)
}

// Operation describes one remote request: method, path relative to the
// backend base URL, and an optional JSON object body.
type Operation struct {
	Method string
	Path   string
	Body   map[string]any
}

// Client executes Operations against the expense backend. Calls are
// single-shot with no automatic retry.
type Client struct {
	baseURL string
	tokens  TokenProvider
	http    *http.Client
}

// NewClient creates a Client for the given backend base URL.
func NewClient(baseURL string, tokens TokenProvider) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: CallTimeout},
	}
}

// Do executes one operation and returns the raw response body. Failures
// are typed: *NetworkError for transport problems and timeouts,
// *HTTPError for non-2xx responses.
func (c *Client) Do(ctx context.Context, op Operation) ([]byte, error) {
	var reqBody io.Reader
	if op.Body != nil {
		data, err := json.Marshal(op.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + "/" + strings.TrimLeft(op.Path, "/")
	req, err := http.NewRequestWithContext(ctx, op.Method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	token, err := c.tokens.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if op.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	slog.Debug("api call succeeded", "method", op.Method, "path", op.Path)
	return respBody, nil
}
