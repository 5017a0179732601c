// Package monitor owns the watchdog loop: poll the page, compare the
// element text against the baseline or the expected literal, notify on
// deviation, and restart the browser engine after too many consecutive
// failures.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/pagewatch/pkg/browser"
	"github.com/odvcencio/pagewatch/pkg/logging"
	"github.com/odvcencio/pagewatch/pkg/notify"
)

// Mode is the comparison the monitor runs.
type Mode string

const (
	// ModeWatch detects any change in the element's text.
	ModeWatch Mode = "watch"

	// ModeExpect verifies the element's text contains a literal,
	// case-insensitively.
	ModeExpect Mode = "expect"
)

// errElementMissing fails a watch-mode check when the element cannot be
// located. In expect mode a missing element is a reportable state, not a
// failure.
var errElementMissing = errors.New("element not found on the page")

// Config configures one monitor run.
type Config struct {
	URL          string
	Selector     string
	ExpectedText string

	// Location is the timezone for notification timestamps. Nil means
	// time.Local.
	Location *time.Location

	PollInterval      time.Duration
	HeartbeatInterval time.Duration

	// MaxConsecutiveFailures is the failed-check threshold that triggers
	// an engine restart.
	MaxConsecutiveFailures int

	// StateFile persists the last-seen value across process restarts.
	// Empty disables persistence.
	StateFile string

	// RunID identifies this run in logs and events. Generated when empty.
	RunID string
}

// Monitor is the watchdog. It owns the engine handle, the last-known
// state, and the consecutive-failure counter.
type Monitor struct {
	cfg      Config
	mode     Mode
	locator  browser.Locator
	engine   browser.Engine
	notifier *notify.Manager
	logger   *logging.Logger
	loc      *time.Location
	runID    string

	mu sync.Mutex
	// Last-known state. baseline carries the previous element text in
	// watch mode; foundLast tracks the found/missing edge in expect mode.
	baseline    string
	hasBaseline bool
	foundLast   bool

	lastHeartbeat time.Time
	failures      int

	startedAt   time.Time
	checksTotal int64
	lastOutcome notify.EventType
	lastText    string
	lastErr     string
	lastCheckAt time.Time
	nextCheckAt time.Time
}

// New creates a monitor. A nil notifier disables notifications; state and
// logging are both optional.
func New(cfg Config, engine browser.Engine, notifier *notify.Manager, logger *logging.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 3 * time.Minute
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	mode := ModeWatch
	if strings.TrimSpace(cfg.ExpectedText) != "" {
		mode = ModeExpect
	}

	m := &Monitor{
		cfg:       cfg,
		mode:      mode,
		locator:   browser.ParseSelector(cfg.Selector, cfg.ExpectedText),
		engine:    engine,
		notifier:  notifier,
		logger:    logger,
		loc:       loc,
		runID:     cfg.RunID,
		foundLast: true,
		startedAt: time.Now(),
	}
	m.restoreState()
	return m
}

// RunID returns the run identifier.
func (m *Monitor) RunID() string {
	return m.runID
}

// Mode returns the active comparison mode.
func (m *Monitor) Mode() Mode {
	return m.mode
}

// restoreState loads the persisted last-seen value so a process restart
// does not re-announce a baseline it already reported.
func (m *Monitor) restoreState() {
	if m.cfg.StateFile == "" {
		return
	}
	st, err := LoadState(m.cfg.StateFile)
	if err != nil {
		m.logger.Warn(logging.CategoryMonitor, "state_load_failed", "could not load state file", map[string]any{
			"path":  m.cfg.StateFile,
			"error": err.Error(),
		})
		return
	}
	if st == nil {
		return
	}

	m.baseline = st.LastText
	m.hasBaseline = st.LastText != ""
	m.foundLast = st.Found
	// Restored runs start a fresh heartbeat window instead of firing
	// immediately.
	m.lastHeartbeat = time.Now()

	m.logger.Info(logging.CategoryMonitor, "state_restored", "restored last-seen state", map[string]any{
		"path":     m.cfg.StateFile,
		"found":    st.Found,
		"saved_at": st.SavedAt,
	})
}

func (m *Monitor) persistState() {
	if m.cfg.StateFile == "" {
		return
	}
	st := &State{
		LastText: m.baseline,
		Found:    m.foundLast,
		SavedAt:  time.Now(),
	}
	if err := SaveState(m.cfg.StateFile, st); err != nil {
		m.logger.Warn(logging.CategoryMonitor, "state_save_failed", "could not write state file", map[string]any{
			"path":  m.cfg.StateFile,
			"error": err.Error(),
		})
	}
}

// Result reports what one check observed and which notification, if any,
// it produced.
type Result struct {
	Observation browser.Observation

	// Event is the notification emitted by this check, empty when the
	// check stayed silent.
	Event notify.EventType

	// Matched reports whether the expect-mode literal was present. Always
	// true for a successful watch-mode check.
	Matched bool
}

// CheckOnce runs a single check cycle. A returned error is a failed check
// and counts toward the restart threshold; notification transport failures
// are logged but never fail the check.
func (m *Monitor) CheckOnce(ctx context.Context) (Result, error) {
	obs, obsErr := m.engine.Observe(ctx, m.cfg.URL, m.locator)
	now := time.Now().In(m.loc)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checksTotal++
	m.lastCheckAt = now

	var res Result
	var err error
	if m.mode == ModeExpect {
		res, err = m.checkExpect(ctx, obs, obsErr, now)
	} else {
		res, err = m.checkWatch(ctx, obs, obsErr, now)
	}

	if err != nil {
		m.lastErr = err.Error()
		recordCheck("failure")
	} else {
		m.lastErr = ""
		recordCheck("success")
	}
	m.lastOutcome = res.Event
	m.lastText = obs.Text
	recordLastCheck(now)

	return res, err
}

// checkWatch implements change detection: the first successful observation
// baselines the text, later differences re-baseline and notify.
func (m *Monitor) checkWatch(ctx context.Context, obs browser.Observation, obsErr error, now time.Time) (Result, error) {
	res := Result{Observation: obs}

	if obsErr != nil {
		return res, fmt.Errorf("observe: %w", obsErr)
	}
	if !obs.Found {
		return res, errElementMissing
	}
	res.Matched = true

	switch {
	case !m.hasBaseline:
		m.baseline = obs.Text
		m.hasBaseline = true
		m.lastHeartbeat = now
		m.persistState()
		m.logger.Info(logging.CategoryMonitor, "baseline", "first observation recorded", map[string]any{
			"text": obs.Text,
		})
		res.Event = notify.EventHeartbeat
		m.notifyHeartbeat(ctx, obs, now)

	case obs.Text != m.baseline:
		m.logger.Info(logging.CategoryMonitor, "changed", "element text changed", map[string]any{
			"previous": m.baseline,
			"current":  obs.Text,
		})
		m.baseline = obs.Text
		m.persistState()
		res.Event = notify.EventChanged
		m.notifyChanged(ctx, obs, now)

	case now.Sub(m.lastHeartbeat) >= m.cfg.HeartbeatInterval:
		m.lastHeartbeat = now
		res.Event = notify.EventHeartbeat
		m.notifyHeartbeat(ctx, obs, now)
	}

	return res, nil
}

// checkExpect verifies the expected literal. Missing and recovered are
// edge-triggered on the foundLast flag; a present-but-mismatching element
// notifies changed and clears the flag so a later match reads as recovery.
func (m *Monitor) checkExpect(ctx context.Context, obs browser.Observation, obsErr error, now time.Time) (Result, error) {
	res := Result{Observation: obs}

	if obsErr != nil {
		return res, fmt.Errorf("observe: %w", obsErr)
	}

	if !obs.Found {
		if m.foundLast {
			m.logger.Warn(logging.CategoryMonitor, "missing", "expected element disappeared", map[string]any{
				"expected": m.cfg.ExpectedText,
			})
			m.foundLast = false
			m.persistState()
			res.Event = notify.EventMissing
			m.notifyMissing(ctx, now)
		}
		return res, nil
	}

	if containsFold(obs.Text, m.cfg.ExpectedText) {
		res.Matched = true
		if !m.foundLast {
			m.logger.Info(logging.CategoryMonitor, "recovered", "expected element is back", map[string]any{
				"text": obs.Text,
			})
			m.foundLast = true
			m.lastHeartbeat = now
			m.persistState()
			res.Event = notify.EventRecovered
			m.notifyRecovered(ctx, obs, now)
		} else if now.Sub(m.lastHeartbeat) >= m.cfg.HeartbeatInterval {
			m.lastHeartbeat = now
			res.Event = notify.EventHeartbeat
			m.notifyHeartbeat(ctx, obs, now)
		}
		return res, nil
	}

	m.logger.Warn(logging.CategoryMonitor, "mismatch", "element present but text deviates", map[string]any{
		"expected": m.cfg.ExpectedText,
		"current":  obs.Text,
	})
	m.foundLast = false
	m.persistState()
	res.Event = notify.EventChanged
	m.notifyChanged(ctx, obs, now)
	return res, nil
}

// Run is the resilience wrapper: start the engine, loop checks on the poll
// interval, restart the engine at the failure threshold, and shut down
// cleanly on context cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.engine.Start(ctx); err != nil {
		return fmt.Errorf("start %s engine: %w", m.engine.Name(), err)
	}
	defer m.engine.Close()

	m.logger.Info(logging.CategoryMonitor, "run_started", "monitor loop started", map[string]any{
		"url":      m.cfg.URL,
		"selector": m.cfg.Selector,
		"mode":     string(m.mode),
		"engine":   m.engine.Name(),
		"interval": m.cfg.PollInterval.String(),
	})

	for {
		_, err := m.CheckOnce(ctx)
		if ctx.Err() != nil {
			m.logger.Info(logging.CategoryMonitor, "run_stopped", "monitor loop stopped", nil)
			return nil
		}

		m.mu.Lock()
		if err != nil {
			m.failures++
			failures := m.failures
			m.mu.Unlock()

			m.logger.Warn(logging.CategoryMonitor, "check_failed", "check failed", map[string]any{
				"error":     err.Error(),
				"failures":  failures,
				"threshold": m.cfg.MaxConsecutiveFailures,
				"retryable": browser.IsRetryable(err),
			})

			if failures >= m.cfg.MaxConsecutiveFailures {
				m.restartEngine(ctx)
			}
		} else {
			m.failures = 0
			m.mu.Unlock()
		}

		m.mu.Lock()
		m.nextCheckAt = time.Now().Add(m.cfg.PollInterval)
		recordConsecutiveFailures(m.failures)
		m.mu.Unlock()

		select {
		case <-time.After(m.cfg.PollInterval):
		case <-ctx.Done():
			m.logger.Info(logging.CategoryMonitor, "run_stopped", "monitor loop stopped", nil)
			return nil
		}
	}
}

// restartEngine resets the failure counter only when the restart succeeds,
// so a failed restart is retried at the very next failed check.
func (m *Monitor) restartEngine(ctx context.Context) {
	m.logger.Warn(logging.CategoryMonitor, "engine_restart", "failure threshold reached, restarting engine", map[string]any{
		"engine": m.engine.Name(),
	})

	if err := m.engine.Restart(ctx); err != nil {
		m.logger.Error(logging.CategoryMonitor, "engine_restart_failed", "engine restart failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	m.mu.Lock()
	m.failures = 0
	m.mu.Unlock()
}

func (m *Monitor) watch() notify.Watch {
	return notify.Watch{
		RunID:        m.runID,
		URL:          m.cfg.URL,
		Selector:     m.cfg.Selector,
		ExpectedText: m.cfg.ExpectedText,
	}
}

func (m *Monitor) notifyChanged(ctx context.Context, obs browser.Observation, now time.Time) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyChanged(ctx, m.watch(), obs.Text, obs.Title, now); err != nil {
		m.logNotifyError("changed", err)
	}
}

func (m *Monitor) notifyMissing(ctx context.Context, now time.Time) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyMissing(ctx, m.watch(), now); err != nil {
		m.logNotifyError("missing", err)
	}
}

func (m *Monitor) notifyRecovered(ctx context.Context, obs browser.Observation, now time.Time) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyRecovered(ctx, m.watch(), obs.Text, obs.Title, now); err != nil {
		m.logNotifyError("recovered", err)
	}
}

func (m *Monitor) notifyHeartbeat(ctx context.Context, obs browser.Observation, now time.Time) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyHeartbeat(ctx, m.watch(), obs.Text, obs.Title, now); err != nil {
		m.logNotifyError("heartbeat", err)
	}
}

func (m *Monitor) logNotifyError(kind string, err error) {
	m.logger.Error(logging.CategoryNotify, "notify_failed", "notification delivery failed", map[string]any{
		"kind":  kind,
		"error": err.Error(),
	})
}

// containsFold reports whether s contains substr case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
