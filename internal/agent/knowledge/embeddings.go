package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Chative-lead-agent/server/pkg/resilience"
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingClient calls an HTTP embedding service.
type EmbeddingClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewEmbeddingClient(url, apiKey string, timeout time.Duration) *EmbeddingClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &EmbeddingClient{url: url, apiKey: apiKey, httpClient: &http.Client{Timeout: timeout}}
}

type embeddingRequest struct {
	Text string `json:"text"`
}

// Embed accepts both {"vector": [...]} and a bare array from the service.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	bodyBytes, err := json.Marshal(embeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("embedding API", resp.StatusCode, body)
	}

	var wrapped struct {
		Vector []float32 `json:"vector"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Vector) > 0 {
		return wrapped.Vector, nil
	}
	var vector []float32
	if err := json.Unmarshal(body, &vector); err == nil && len(vector) > 0 {
		return vector, nil
	}
	return nil, resilience.Permanent(fmt.Errorf("decode embedding response"))
}

// statusError marks client errors as permanent so they are not retried.
func statusError(what string, status int, body []byte) error {
	if len(body) > 512 {
		body = body[:512]
	}
	err := fmt.Errorf("%s returned %d: %s", what, status, string(body))
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return resilience.Permanent(err)
	}
	return err
}
