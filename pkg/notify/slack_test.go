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

func TestNewSlackAdapter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SlackConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     SlackConfig{WebhookURL: "https://hooks.slack.com/services/T/B/X"},
			wantErr: false,
		},
		{
			name:    "missing webhook URL",
			cfg:     SlackConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewSlackAdapter(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adapter.Name() != "slack" {
				t.Errorf("Name() = %q, want 'slack'", adapter.Name())
			}
		})
	}
}

func TestSlackSend(t *testing.T) {
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	adapter, err := NewSlackAdapter(SlackConfig{WebhookURL: server.URL})
	if err != nil {
		t.Fatalf("NewSlackAdapter: %v", err)
	}

	event := &Event{
		Type:         EventMissing,
		RunID:        "run-3",
		URL:          "https://example.com",
		ExpectedText: "In stock",
		Timestamp:    time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC),
	}
	if err := adapter.Send(context.Background(), event); err != nil {
		t.Fatalf("Send: %v", err)
	}

	attachments, ok := gotPayload["attachments"].([]any)
	if !ok || len(attachments) != 1 {
		t.Fatalf("payload should carry exactly one attachment: %v", gotPayload)
	}
	att := attachments[0].(map[string]any)
	if att["color"] != "#FF0000" {
		t.Errorf("missing events should be red, got %v", att["color"])
	}
	text, _ := att["text"].(string)
	if !strings.Contains(text, "⚠️ Element missing!") {
		t.Errorf("unexpected attachment text: %q", text)
	}
	if footer, _ := att["footer"].(string); !strings.Contains(footer, "run-3") {
		t.Errorf("footer should name the run: %q", footer)
	}
}

func TestSlackSendWebhookError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid_payload"))
	}))
	defer server.Close()

	adapter, err := NewSlackAdapter(SlackConfig{WebhookURL: server.URL})
	if err != nil {
		t.Fatalf("NewSlackAdapter: %v", err)
	}

	err = adapter.Send(context.Background(), &Event{Type: EventHeartbeat, Timestamp: time.Now()})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "invalid_payload") {
		t.Errorf("error should carry the response body: %v", err)
	}
}
