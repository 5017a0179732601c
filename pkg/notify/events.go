// Package notify delivers watchdog notifications. When the watched element
// changes, disappears, or comes back, the monitor reports it via Telegram,
// Slack, or the optional NATS event bus.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType defines the type of notification event.
type EventType string

const (
	// EventChanged is sent when the element's text differs from the
	// baseline or from the expected literal
	EventChanged EventType = "element_changed"

	// EventMissing is sent once when the element disappears from the page
	EventMissing EventType = "element_missing"

	// EventRecovered is sent when a missing element is found again
	EventRecovered EventType = "element_recovered"

	// EventHeartbeat is sent periodically while everything is in order
	EventHeartbeat EventType = "heartbeat"
)

// SummaryLimit caps the element text included in notification bodies.
const SummaryLimit = 200

// Event is a notification event.
type Event struct {
	// ID is the unique event identifier
	ID string `json:"id"`

	// Type is the event type
	Type EventType `json:"type"`

	// RunID is the monitor run this event belongs to
	RunID string `json:"run_id,omitempty"`

	// URL is the watched page
	URL string `json:"url"`

	// Selector is the element selector in use
	Selector string `json:"selector,omitempty"`

	// ExpectedText is the literal being verified (expect mode only)
	ExpectedText string `json:"expected_text,omitempty"`

	// CurrentText is the element text at observation time
	CurrentText string `json:"current_text,omitempty"`

	// PageTitle is the page title at observation time
	PageTitle string `json:"page_title,omitempty"`

	// Timestamp is when the event occurred, already in the configured
	// notification timezone
	Timestamp time.Time `json:"timestamp"`
}

// Summary returns the current text truncated to limit runes.
func (e *Event) Summary(limit int) string {
	runes := []rune(e.CurrentText)
	if len(runes) <= limit {
		return e.CurrentText
	}
	return string(runes[:limit])
}

// Watch identifies the page and element a notification refers to.
type Watch struct {
	// RunID identifies the monitor run
	RunID string

	// URL is the watched page
	URL string

	// Selector is the configured element selector
	Selector string

	// ExpectedText is the literal being verified, empty in watch mode
	ExpectedText string
}

// Publisher publishes notification events to an event bus.
type Publisher interface {
	// Publish sends an event to the bus
	Publish(ctx context.Context, event *Event) error

	// Close closes the publisher
	Close() error
}

// Adapter sends notifications to a specific channel (Telegram, Slack, etc).
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// Send sends a notification
	Send(ctx context.Context, event *Event) error

	// Close closes the adapter
	Close() error
}

// Manager fans events out to the configured adapters and the optional bus.
type Manager struct {
	adapters  []Adapter
	publisher Publisher
}

// NewManager creates a notification manager. A nil publisher disables the
// bus; zero adapters is valid and makes Notify a no-op.
func NewManager(publisher Publisher, adapters ...Adapter) *Manager {
	return &Manager{
		adapters:  adapters,
		publisher: publisher,
	}
}

// Notify sends a notification via the bus and all adapters. Every
// destination is attempted; the last failure is returned so one broken
// channel cannot silence the rest.
func (m *Manager) Notify(ctx context.Context, event *Event) error {
	var lastErr error

	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, event); err != nil {
			lastErr = fmt.Errorf("publish event: %w", err)
			recordNotifyError("bus")
		} else {
			recordNotifySent("bus")
		}
	}

	for _, adapter := range m.adapters {
		if err := adapter.Send(ctx, event); err != nil {
			lastErr = fmt.Errorf("%s: %w", adapter.Name(), err)
			recordNotifyError(adapter.Name())
		} else {
			recordNotifySent(adapter.Name())
		}
	}

	return lastErr
}

// NotifyChanged reports that the element's text changed.
func (m *Manager) NotifyChanged(ctx context.Context, w Watch, currentText, pageTitle string, at time.Time) error {
	return m.Notify(ctx, newEvent(EventChanged, w, currentText, pageTitle, at))
}

// NotifyMissing reports that the element disappeared from the page.
func (m *Manager) NotifyMissing(ctx context.Context, w Watch, at time.Time) error {
	return m.Notify(ctx, newEvent(EventMissing, w, "", "", at))
}

// NotifyRecovered reports that a previously missing element is back.
func (m *Manager) NotifyRecovered(ctx context.Context, w Watch, currentText, pageTitle string, at time.Time) error {
	return m.Notify(ctx, newEvent(EventRecovered, w, currentText, pageTitle, at))
}

// NotifyHeartbeat reports that the element is in place.
func (m *Manager) NotifyHeartbeat(ctx context.Context, w Watch, currentText, pageTitle string, at time.Time) error {
	return m.Notify(ctx, newEvent(EventHeartbeat, w, currentText, pageTitle, at))
}

func newEvent(t EventType, w Watch, currentText, pageTitle string, at time.Time) *Event {
	if at.IsZero() {
		at = time.Now()
	}
	return &Event{
		ID:           ulid.Make().String(),
		Type:         t,
		RunID:        w.RunID,
		URL:          w.URL,
		Selector:     w.Selector,
		ExpectedText: w.ExpectedText,
		CurrentText:  currentText,
		PageTitle:    pageTitle,
		Timestamp:    at,
	}
}

// Close closes all adapters and the publisher.
func (m *Manager) Close() error {
	var lastErr error
	for _, adapter := range m.adapters {
		if err := adapter.Close(); err != nil {
			lastErr = err
		}
	}
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// JSON helpers
func (e *Event) JSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

func ParseEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
