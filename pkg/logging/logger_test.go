package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		baseDir func(t *testing.T) string
		runID   string
		wantErr bool
	}{
		{
			name:    "valid directory and run ID",
			baseDir: func(t *testing.T) string { return t.TempDir() },
			runID:   "run-123",
			wantErr: false,
		},
		{
			name: "nested directory is created",
			baseDir: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "deep", "logs")
			},
			runID:   "run-456",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := tt.baseDir(t)
			logger, err := NewLogger(base, tt.runID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer logger.Close()

			if _, err := os.Stat(filepath.Join(base, "runs", tt.runID+".jsonl")); err != nil {
				t.Errorf("run log not created: %v", err)
			}
			if _, err := os.Stat(filepath.Join(base, "errors.jsonl")); err != nil {
				t.Errorf("error log not created: %v", err)
			}
		})
	}
}

func TestLoggerWritesEvents(t *testing.T) {
	base := t.TempDir()
	logger, err := NewLogger(base, "run-1")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	if err := logger.Info(CategoryMonitor, "check_completed", "check ok", map[string]any{"outcome": "ok"}); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if err := logger.Error(CategoryBrowser, "navigate_failed", "boom", nil); err != nil {
		t.Fatalf("Error() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, "runs", "run-1.jsonl"))
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}

	var first Event
	if err := json.Unmarshal([]byte(splitFirstLine(string(data))), &first); err != nil {
		t.Fatalf("unmarshal first event: %v", err)
	}
	if first.Category != CategoryMonitor || first.EventType != "check_completed" {
		t.Errorf("unexpected first event: %+v", first)
	}
	if first.RunID != "run-1" {
		t.Errorf("run id not stamped, got %q", first.RunID)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}

	errData, err := os.ReadFile(filepath.Join(base, "errors.jsonl"))
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	var errEvent Event
	if err := json.Unmarshal([]byte(splitFirstLine(string(errData))), &errEvent); err != nil {
		t.Fatalf("unmarshal error event: %v", err)
	}
	if errEvent.EventType != "navigate_failed" {
		t.Errorf("error log got wrong event: %+v", errEvent)
	}
}

func TestLoggerMinLevelFiltersDebug(t *testing.T) {
	base := t.TempDir()
	logger, err := NewLogger(base, "run-2")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Close()

	if err := logger.Debug(CategoryNotify, "payload", "dropped", nil); err != nil {
		t.Fatalf("Debug() error = %v", err)
	}

	data, err := os.ReadFile(logger.RunLogPath())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("debug event written despite info min level: %q", data)
	}

	logger.SetMinLevel(LevelDebug)
	if err := logger.Debug(CategoryNotify, "payload", "kept", nil); err != nil {
		t.Fatalf("Debug() error = %v", err)
	}
	data, err = os.ReadFile(logger.RunLogPath())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if len(data) == 0 {
		t.Error("debug event missing after lowering min level")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	if err := logger.Info(CategoryMonitor, "noop", "", nil); err != nil {
		t.Fatalf("nil logger Info() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("nil logger Close() error = %v", err)
	}
	logger.SetMinLevel(LevelDebug)
	if got := logger.RunLogPath(); got != "" {
		t.Fatalf("nil logger RunLogPath() = %q", got)
	}
}

func TestReadRecentEvents(t *testing.T) {
	base := t.TempDir()
	logger, err := NewLogger(base, "run-3")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := logger.Info(CategoryMonitor, "tick", "", map[string]any{"n": i}); err != nil {
			t.Fatalf("Info() error = %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events, err := ReadRecentEvents(filepath.Join(base, "runs", "run-3.jsonl"), 2)
	if err != nil {
		t.Fatalf("ReadRecentEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Details["n"].(float64) != 4 {
		t.Errorf("expected the newest event last, got %+v", events[1])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func splitFirstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
