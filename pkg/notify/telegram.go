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

const telegramAPIBase = "https://api.telegram.org"

// TelegramAdapter sends notifications via the Telegram Bot API.
type TelegramAdapter struct {
	botToken string
	chatID   string
	client   *http.Client

	// apiBase is overridden in tests
	apiBase string
}

// TelegramConfig configures the Telegram adapter.
type TelegramConfig struct {
	// BotToken is the Telegram bot token from @BotFather
	BotToken string

	// ChatID is a numeric chat id or an @channel username
	ChatID string
}

// NewTelegramAdapter creates a Telegram adapter.
func NewTelegramAdapter(cfg TelegramConfig) (*TelegramAdapter, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("chat ID is required")
	}

	return &TelegramAdapter{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 30 * time.Second},
		apiBase:  telegramAPIBase,
	}, nil
}

// Name returns the adapter name.
func (t *TelegramAdapter) Name() string {
	return "telegram"
}

// Probe verifies the bot token by calling getMe and returns the bot
// username. The monitor calls this once at startup so a bad token fails
// the run before the first poll.
func (t *TelegramAdapter) Probe(ctx context.Context) (string, error) {
	body, err := t.call(ctx, "getMe", nil)
	if err != nil {
		return "", err
	}

	var result struct {
		OK     bool `json:"ok"`
		Result struct {
			Username string `json:"username"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse getMe response: %w", err)
	}
	if !result.OK {
		return "", fmt.Errorf("telegram getMe returned ok=false")
	}
	return result.Result.Username, nil
}

// Send sends a notification. The body is plain text; Telegram accepts both
// numeric chat ids and @channel usernames as strings.
func (t *TelegramAdapter) Send(ctx context.Context, event *Event) error {
	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    FormatBody(event),
	}
	_, err := t.call(ctx, "sendMessage", payload)
	return err
}

func (t *TelegramAdapter) call(ctx context.Context, method string, payload map[string]any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", method, err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Close closes the adapter.
func (t *TelegramAdapter) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
