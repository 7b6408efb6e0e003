// Package commentary calls an LLM-backed commentary service for free-text
// prose about the latest action. Strictly best-effort: callers fire and
// forget, and a disabled client returns empty output without error.
package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"regimetrader/internal/ports"
)

// Client implements ports.Commentator over HTTP JSON.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

var _ ports.Commentator = (*Client)(nil)

// New creates a commentary client. An empty URL disables the client.
func New(url, apiKey string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

type commentaryResponse struct {
	Commentary string `json:"commentary"`
}

// Comment requests prose for the given action and market context.
func (c *Client) Comment(ctx context.Context, req ports.CommentaryRequest) (string, error) {
	if c.url == "" {
		return "", nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"action":    req.Action,
		"symbol":    req.Symbol,
		"price":     req.Price,
		"reasoning": req.Reasoning,
		"mode":      req.Mode,
		"zone":      req.Zone,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("commentary service returned status %d", resp.StatusCode)
	}

	var out commentaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Commentary, nil
}
