package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewTelegramAdapter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TelegramConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     TelegramConfig{BotToken: "123:ABC", ChatID: "456"},
			wantErr: false,
		},
		{
			name:    "channel username chat id",
			cfg:     TelegramConfig{BotToken: "123:ABC", ChatID: "@alerts"},
			wantErr: false,
		},
		{
			name:    "missing bot token",
			cfg:     TelegramConfig{ChatID: "456"},
			wantErr: true,
		},
		{
			name:    "missing chat ID",
			cfg:     TelegramConfig{BotToken: "123:ABC"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewTelegramAdapter(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adapter.Name() != "telegram" {
				t.Errorf("Name() = %q, want 'telegram'", adapter.Name())
			}
		})
	}
}

func newTestTelegramAdapter(t *testing.T, handler http.HandlerFunc) (*TelegramAdapter, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewTelegramAdapter(TelegramConfig{BotToken: "123:ABC", ChatID: "@alerts"})
	if err != nil {
		t.Fatalf("NewTelegramAdapter: %v", err)
	}
	adapter.apiBase = server.URL
	return adapter, server
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any

	adapter, _ := newTestTelegramAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	event := &Event{
		Type:        EventChanged,
		URL:         "https://example.com",
		CurrentText: "new value",
		Timestamp:   time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC),
	}
	if err := adapter.Send(context.Background(), event); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/bot123:ABC/sendMessage" {
		t.Errorf("path = %q, want /bot123:ABC/sendMessage", gotPath)
	}
	if gotPayload["chat_id"] != "@alerts" {
		t.Errorf("chat_id = %v, want @alerts", gotPayload["chat_id"])
	}
	text, _ := gotPayload["text"].(string)
	if !strings.Contains(text, "⚠️ Element changed!") || !strings.Contains(text, "new value") {
		t.Errorf("unexpected message text: %q", text)
	}
	if _, hasParseMode := gotPayload["parse_mode"]; hasParseMode {
		t.Error("messages are plain text; parse_mode must not be set")
	}
}

func TestTelegramSendAPIError(t *testing.T) {
	adapter, _ := newTestTelegramAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	})

	err := adapter.Send(context.Background(), &Event{Type: EventHeartbeat, Timestamp: time.Now()})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("error should carry the response body: %v", err)
	}
}

func TestTelegramProbe(t *testing.T) {
	adapter, _ := newTestTelegramAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:ABC/getMe" {
			t.Errorf("path = %q, want /bot123:ABC/getMe", r.URL.Path)
		}
		w.Write([]byte(`{"ok":true,"result":{"username":"pagewatch_bot"}}`))
	})

	username, err := adapter.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if username != "pagewatch_bot" {
		t.Errorf("username = %q, want pagewatch_bot", username)
	}
}

func TestTelegramProbeBadToken(t *testing.T) {
	adapter, _ := newTestTelegramAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"ok":false,"description":"Not Found"}`))
	})

	if _, err := adapter.Probe(context.Background()); err == nil {
		t.Fatal("expected error for a rejected token")
	}
}

func TestTelegramSendHonorsContext(t *testing.T) {
	adapter, _ := newTestTelegramAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := adapter.Send(ctx, &Event{Type: EventHeartbeat, Timestamp: time.Now()}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
