// Package flowapi implements ports.FlowProvider against the upstream flow
// analytics HTTP API. The last good reading is cached and served when the
// service is unreachable, so a flaky provider degrades rather than fails a
// trading cycle.
package flowapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"regimetrader/internal/domain"
	"regimetrader/internal/ports"
)

// Client is an HTTP flow/zone provider with a last-good cache.
type Client struct {
	baseURL string
	http    *http.Client
	logger  ports.Logger

	mu       sync.Mutex
	lastFlow *domain.FlowReading
	lastZone domain.CompositeZone
}

var _ ports.FlowProvider = (*Client)(nil)

// New creates a flow API client.
func New(baseURL string, timeout time.Duration, logger ports.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("flow API base URL is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for flow client")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type flowResponse struct {
	Raw        float64 `json:"raw"`
	Percentile float64 `json:"percentile"`
	Low30      float64 `json:"low30"`
	High30     float64 `json:"high30"`
	Timestamp  string  `json:"timestamp"`
}

type zoneResponse struct {
	Zone string `json:"zone"`
}

// GetFlow fetches the current flow reading, falling back to the cached value
// on failure.
func (c *Client) GetFlow(ctx context.Context) (*domain.FlowReading, error) {
	var resp flowResponse
	if err := c.getJSON(ctx, c.baseURL+"/flow", &resp); err != nil {
		c.mu.Lock()
		cached := c.lastFlow
		c.mu.Unlock()
		if cached != nil {
			c.logger.Warn(ctx, "Flow fetch failed, serving cached reading", map[string]interface{}{"error": err.Error()})
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %v", ports.ErrFlowUnavailable, err)
	}

	reading := &domain.FlowReading{
		Raw:        resp.Raw,
		Percentile: resp.Percentile,
		Low30:      resp.Low30,
		High30:     resp.High30,
		Timestamp:  time.Now().UTC(),
	}
	if ts, err := time.Parse(time.RFC3339, resp.Timestamp); err == nil {
		reading.Timestamp = ts
	}

	c.mu.Lock()
	c.lastFlow = reading
	c.mu.Unlock()
	return reading, nil
}

// GetZone fetches the composite zone classification, falling back to the
// cached value on failure.
func (c *Client) GetZone(ctx context.Context) (domain.CompositeZone, error) {
	var resp zoneResponse
	if err := c.getJSON(ctx, c.baseURL+"/zone", &resp); err != nil {
		c.mu.Lock()
		cached := c.lastZone
		c.mu.Unlock()
		if cached != "" {
			c.logger.Warn(ctx, "Zone fetch failed, serving cached zone", map[string]interface{}{"error": err.Error()})
			return cached, nil
		}
		return "", fmt.Errorf("%w: %v", ports.ErrFlowUnavailable, err)
	}

	zone := domain.CompositeZone(resp.Zone)
	c.mu.Lock()
	c.lastZone = zone
	c.mu.Unlock()
	return zone, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flow API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
