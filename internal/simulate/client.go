package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// errStatus carries an unexpected HTTP answer.
type errStatus struct {
	Status int
	Code   string
	Msg    string
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("status %d %s: %s", e.Status, e.Code, e.Msg)
}

// codeOf returns the API error code carried by err, if any.
func codeOf(err error) string {
	var es *errStatus
	if errors.As(err, &es) {
		return es.Code
	}
	return ""
}

// HTTPClient calls the tournament API as one team at a time.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends body as JSON and decodes a 2xx answer into out. It returns the
// status so callers can tell 204 apart.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return resp.StatusCode, &errStatus{Status: resp.StatusCode, Code: eb.Code, Msg: eb.Message}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
