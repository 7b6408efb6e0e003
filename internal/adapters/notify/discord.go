// Package notify delivers status messages to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"regimetrader/internal/ports"
)

// DiscordNotifier implements ports.Notifier on a Discord webhook. A notifier
// constructed with an empty URL is disabled and silently drops messages.
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	http       *http.Client
}

var _ ports.Notifier = (*DiscordNotifier)(nil)

// NewDiscord creates a webhook notifier.
func NewDiscord(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts a single embed with the given title and message.
func (d *DiscordNotifier) Notify(ctx context.Context, title, message string) error {
	if !d.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"timestamp":   time.Now().Format(time.RFC3339),
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status %d", resp.StatusCode)
	}
	return nil
}
