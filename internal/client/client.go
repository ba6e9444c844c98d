// Package client holds the typed HTTP clients the services use to call each
// other. Calls carry a finite deadline; a transport failure or timeout means
// the remote effect is unknown, so mutating calls are only retried with the
// same operation key and the retry budget is bounded by the caller's config.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thejas/flightbook/internal/domain"
)

type httpClient struct {
	baseURL  string
	client   *http.Client
	attempts int
}

func newHTTPClient(baseURL string, timeout time.Duration, attempts int) httpClient {
	return httpClient{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		attempts: attempts,
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs one request and decodes the response into out. Errors returned
// by the remote service keep their kind; transport-level failures come back
// as UpstreamServiceError.
func (c httpClient) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Wrap(domain.KindUpstream, "remote call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return domain.E(domain.KindUpstream, "remote service returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			return domain.E(domain.KindUpstream, "remote service returned %d", resp.StatusCode)
		}
		return domain.E(domain.ErrorKind(eb.Error), "%s", eb.Message)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// doWithRetry repeats do while the failure is upstream-kind. Safe only for
// idempotent requests, which is why every mutating endpoint takes an op key.
func (c httpClient) doWithRetry(ctx context.Context, method, path, token string, body, out interface{}) error {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		lastErr = c.do(ctx, method, path, token, body, out)
		if lastErr == nil || !domain.IsKind(lastErr, domain.KindUpstream) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}
