package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeAdapter struct {
	name   string
	sent   []*Event
	err    error
	closed bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Send(ctx context.Context, event *Event) error {
	f.sent = append(f.sent, event)
	return f.err
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

type fakePublisher struct {
	published []*Event
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, event *Event) error {
	f.published = append(f.published, event)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func TestManagerFanOut(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	b := &fakeAdapter{name: "b"}
	pub := &fakePublisher{}
	mgr := NewManager(pub, a, b)

	w := Watch{RunID: "run-1", URL: "https://example.com", Selector: "#status"}
	if err := mgr.NotifyChanged(context.Background(), w, "new text", "Example", time.Now()); err != nil {
		t.Fatalf("NotifyChanged: %v", err)
	}

	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("adapters got %d/%d events, want 1/1", len(a.sent), len(b.sent))
	}
	if len(pub.published) != 1 {
		t.Fatalf("publisher got %d events, want 1", len(pub.published))
	}

	ev := a.sent[0]
	if ev.Type != EventChanged {
		t.Errorf("Type = %q, want %q", ev.Type, EventChanged)
	}
	if ev.ID == "" {
		t.Error("event ID should be set")
	}
	if ev.URL != w.URL || ev.RunID != w.RunID || ev.Selector != w.Selector {
		t.Errorf("watch fields not carried: %+v", ev)
	}
	if ev.CurrentText != "new text" || ev.PageTitle != "Example" {
		t.Errorf("observation fields not carried: %+v", ev)
	}
}

func TestManagerAttemptsEveryAdapter(t *testing.T) {
	broken := &fakeAdapter{name: "broken", err: errors.New("boom")}
	working := &fakeAdapter{name: "working"}
	mgr := NewManager(nil, broken, working)

	err := mgr.NotifyHeartbeat(context.Background(), Watch{URL: "https://example.com"}, "text", "", time.Now())
	if err == nil {
		t.Fatal("expected the broken adapter's error to surface")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should name the failing adapter: %v", err)
	}
	if len(working.sent) != 1 {
		t.Error("a failing adapter must not prevent delivery to the others")
	}
}

func TestManagerNilPublisherNoAdapters(t *testing.T) {
	mgr := NewManager(nil)
	if err := mgr.NotifyMissing(context.Background(), Watch{URL: "https://example.com"}, time.Now()); err != nil {
		t.Fatalf("no-op notify should succeed: %v", err)
	}
}

func TestManagerClose(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	mgr := NewManager(nil, a)
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed {
		t.Error("adapter not closed")
	}
}

func TestEventSummary(t *testing.T) {
	long := strings.Repeat("я", 300)
	e := &Event{CurrentText: long}
	got := e.Summary(SummaryLimit)
	if runes := []rune(got); len(runes) != SummaryLimit {
		t.Errorf("Summary length = %d runes, want %d", len(runes), SummaryLimit)
	}

	e = &Event{CurrentText: "short"}
	if e.Summary(SummaryLimit) != "short" {
		t.Errorf("short text must pass through unchanged")
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	e := &Event{
		ID:           "01HQ",
		Type:         EventRecovered,
		RunID:        "run-9",
		URL:          "https://example.com",
		Selector:     ".price",
		ExpectedText: "In stock",
		CurrentText:  "In stock: 3 left",
		Timestamp:    time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC),
	}

	parsed, err := ParseEvent(e.JSON())
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if parsed.Type != e.Type || parsed.URL != e.URL || parsed.CurrentText != e.CurrentText {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
}

func TestFormatBody(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)

	tests := []struct {
		name     string
		event    *Event
		contains []string
	}{
		{
			name: "changed in expect mode",
			event: &Event{
				Type:         EventChanged,
				ExpectedText: "Christmas 2026",
				CurrentText:  "Sold out",
				Timestamp:    at,
			},
			contains: []string{
				"⚠️ Element changed!",
				"Time: 2026-01-02 15:04",
				"Expected: Christmas 2026",
				"Found: Sold out",
			},
		},
		{
			name: "changed in watch mode",
			event: &Event{
				Type:        EventChanged,
				CurrentText: "Now 42",
				Timestamp:   at,
			},
			contains: []string{"⚠️ Element changed!", "New text: Now 42"},
		},
		{
			name: "missing",
			event: &Event{
				Type:         EventMissing,
				ExpectedText: "Christmas 2026",
				Timestamp:    at,
			},
			contains: []string{
				"⚠️ Element missing!",
				"Expected element with text: Christmas 2026",
				"Element not found on the page",
			},
		},
		{
			name: "recovered",
			event: &Event{
				Type:        EventRecovered,
				CurrentText: "Christmas 2026 tours",
				Timestamp:   at,
			},
			contains: []string{"✅ Element found again!", "Text: Christmas 2026 tours"},
		},
		{
			name: "heartbeat",
			event: &Event{
				Type:        EventHeartbeat,
				CurrentText: "All systems go",
				Timestamp:   at,
			},
			contains: []string{"✅ Element in place!", "All good."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := FormatBody(tt.event)
			for _, want := range tt.contains {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q:\n%s", want, body)
				}
			}
		})
	}
}

func TestFormatBodyTruncates(t *testing.T) {
	e := &Event{
		Type:        EventHeartbeat,
		CurrentText: strings.Repeat("x", 500),
		Timestamp:   time.Now(),
	}
	body := FormatBody(e)
	if strings.Contains(body, strings.Repeat("x", SummaryLimit+1)) {
		t.Error("body must cap element text at SummaryLimit runes")
	}
}
