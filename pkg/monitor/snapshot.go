package monitor

import (
	"time"

	"github.com/odvcencio/pagewatch/pkg/notify"
)

// Snapshot is a point-in-time status view for the operator listener.
type Snapshot struct {
	RunID    string `json:"run_id"`
	URL      string `json:"url"`
	Selector string `json:"selector"`
	Mode     Mode   `json:"mode"`

	StartedAt   time.Time `json:"started_at"`
	ChecksTotal int64     `json:"checks_total"`

	ConsecutiveFailures int `json:"consecutive_failures"`

	LastOutcome notify.EventType `json:"last_outcome,omitempty"`
	LastText    string           `json:"last_text,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	LastCheckAt time.Time        `json:"last_check_at,omitzero"`
	NextCheckAt time.Time        `json:"next_check_at,omitzero"`
}

// Snapshot returns the current monitor status.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		RunID:               m.runID,
		URL:                 m.cfg.URL,
		Selector:            m.cfg.Selector,
		Mode:                m.mode,
		StartedAt:           m.startedAt,
		ChecksTotal:         m.checksTotal,
		ConsecutiveFailures: m.failures,
		LastOutcome:         m.lastOutcome,
		LastText:            m.lastText,
		LastError:           m.lastErr,
		LastCheckAt:         m.lastCheckAt,
		NextCheckAt:         m.nextCheckAt,
	}
}
