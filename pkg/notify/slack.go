package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SlackAdapter sends notifications via a Slack incoming webhook.
type SlackAdapter struct {
	webhookURL string
	client     *http.Client
}

// SlackConfig configures the Slack adapter.
type SlackConfig struct {
	// WebhookURL is the incoming webhook URL
	WebhookURL string
}

// NewSlackAdapter creates a Slack adapter.
func NewSlackAdapter(cfg SlackConfig) (*SlackAdapter, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	return &SlackAdapter{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the adapter name.
func (s *SlackAdapter) Name() string {
	return "slack"
}

// Send sends a notification as a single webhook attachment.
func (s *SlackAdapter) Send(ctx context.Context, event *Event) error {
	var emoji string
	var color string

	switch event.Type {
	case EventChanged:
		emoji = ":warning:"
		color = "#FFAA00"
	case EventMissing:
		emoji = ":rotating_light:"
		color = "#FF0000"
	case EventRecovered:
		emoji = ":white_check_mark:"
		color = "#00FF00"
	case EventHeartbeat:
		emoji = ":white_check_mark:"
		color = "#36A64F"
	}

	payload := map[string]any{
		"username":   "pagewatch",
		"icon_emoji": ":eyes:",
		"attachments": []map[string]any{
			{
				"color":  color,
				"title":  fmt.Sprintf("%s %s", emoji, event.URL),
				"text":   FormatBody(event),
				"footer": fmt.Sprintf("Run: %s", event.RunID),
				"ts":     event.Timestamp.Unix(),
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// Close closes the adapter.
func (s *SlackAdapter) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
