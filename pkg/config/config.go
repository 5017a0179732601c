// Package config loads and validates the pagewatch configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// environment variables, command-line flags (applied by the CLI layer).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the config file probed when --config is not given.
const DefaultConfigPath = "pagewatch.yaml"

// Config is the complete pagewatch configuration.
type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Browser BrowserConfig `yaml:"browser"`
	Monitor MonitorConfig `yaml:"monitor"`
	Notify  NotifyConfig  `yaml:"notify"`
	Status  StatusConfig  `yaml:"status"`
	Logging LoggingConfig `yaml:"logging"`
}

// TargetConfig identifies the page and element being watched.
type TargetConfig struct {
	// URL of the page to poll. Required.
	URL string `yaml:"url"`

	// Selector locates the element: a CSS selector, #id, an XPath
	// expression (// prefix), or "auto" for text-based detection.
	Selector string `yaml:"selector"`

	// ExpectedText switches the monitor into expectation mode: the
	// element's text must contain this literal (case-insensitive).
	ExpectedText string `yaml:"expected_text"`

	// Timezone used for notification timestamps, e.g. "Europe/Moscow".
	// "Local" or empty uses the system timezone.
	Timezone string `yaml:"timezone"`
}

// BrowserConfig tunes the page-fetch engine.
type BrowserConfig struct {
	// Engine selects the fetcher: "chrome" (rendered DOM via a headless
	// browser) or "http" (plain GET, no JavaScript).
	Engine string `yaml:"engine"`

	Headless  bool `yaml:"headless"`
	CacheBust bool `yaml:"cache_bust"`

	PageLoadTimeout Duration `yaml:"page_load_timeout"`
	ElementTimeout  Duration `yaml:"element_timeout"`
	SettleDelay     Duration `yaml:"settle_delay"`
	ReadyTimeout    Duration `yaml:"ready_timeout"`

	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	UserAgent    string `yaml:"user_agent"`

	// ChromePath overrides browser binary discovery.
	ChromePath string `yaml:"chrome_path"`
}

// MonitorConfig tunes the check loop.
type MonitorConfig struct {
	PollInterval      Duration `yaml:"poll_interval"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// MaxConsecutiveFailures is the failed-check threshold that triggers
	// an engine restart.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`

	// StateFile persists the single last-seen value across restarts.
	// Empty disables persistence.
	StateFile string `yaml:"state_file"`
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
	Bus      BusConfig      `yaml:"bus"`
}

// TelegramConfig configures the Telegram bot adapter.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	// ChatID accepts a numeric chat id or an @channel username.
	ChatID string `yaml:"chat_id"`
}

// SlackConfig configures the Slack webhook adapter.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// BusConfig configures the optional NATS event publisher.
type BusConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// StatusConfig configures the operator HTTP listener.
type StatusConfig struct {
	// BindAddress enables the listener when non-empty, e.g. "127.0.0.1:8799".
	BindAddress string `yaml:"bind_address"`
}

// LoggingConfig configures the structured log output.
type LoggingConfig struct {
	// Dir overrides the log directory; empty uses the standard resolution
	// (PAGEWATCH_LOG_DIR, then .pagewatch/logs).
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Selector: "auto",
			Timezone: "Local",
		},
		Browser: BrowserConfig{
			Engine:          "chrome",
			Headless:        true,
			CacheBust:       true,
			PageLoadTimeout: Duration(30 * time.Second),
			ElementTimeout:  Duration(5 * time.Second),
			SettleDelay:     Duration(2 * time.Second),
			ReadyTimeout:    Duration(5 * time.Second),
			WindowWidth:     1920,
			WindowHeight:    1080,
		},
		Monitor: MonitorConfig{
			PollInterval:           Duration(3 * time.Minute),
			HeartbeatInterval:      Duration(3 * time.Minute),
			MaxConsecutiveFailures: 5,
		},
		Notify: NotifyConfig{
			Enabled: true,
			Bus: BusConfig{
				Subject: "pagewatch.events",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the default config file if
// present, and the environment.
func Load() (*Config, error) {
	cfg, err := LoadPartial("")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath builds the configuration from an explicit config file. Unlike
// Load, a missing file is an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadPartial builds the configuration without validating it, for callers
// that layer their own overrides (CLI flags) on top before Validate. An
// empty path probes DefaultConfigPath, where a missing file is fine; an
// explicit path must exist.
func LoadPartial(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		if err := loadAndMerge(cfg, DefaultConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		if err := loadAndMerge(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadAndMerge unmarshals a YAML file over the current config, so absent
// keys keep their defaults.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MONITOR_URL"); v != "" {
		cfg.Target.URL = v
	}
	if v := os.Getenv("MONITOR_SELECTOR"); v != "" {
		cfg.Target.Selector = v
	}
	if v := os.Getenv("MONITOR_EXPECTED_TEXT"); v != "" {
		cfg.Target.ExpectedText = v
	}
	if v := os.Getenv("MONITOR_TIMEZONE"); v != "" {
		cfg.Target.Timezone = v
	}
	if v := os.Getenv("MONITOR_ENGINE"); v != "" {
		cfg.Browser.Engine = v
	}
	if val, ok := envBool("HEADLESS"); ok {
		cfg.Browser.Headless = val
	}
	if v, ok := envDuration("MONITOR_POLL_INTERVAL"); ok {
		cfg.Monitor.PollInterval = Duration(v)
	}
	if v, ok := envDuration("MONITOR_HEARTBEAT_INTERVAL"); ok {
		cfg.Monitor.HeartbeatInterval = Duration(v)
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Notify.Telegram.BotToken = v
		cfg.Notify.Telegram.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.Telegram.ChatID = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Notify.Slack.WebhookURL = v
		cfg.Notify.Slack.Enabled = true
	}
	if v := os.Getenv("PAGEWATCH_BUS_URL"); v != "" {
		cfg.Notify.Bus.URL = v
	}
	if v := os.Getenv("PAGEWATCH_STATUS_ADDR"); v != "" {
		cfg.Status.BindAddress = v
	}
	if v := os.Getenv("PAGEWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target.URL) == "" {
		return fmt.Errorf("target.url is required")
	}
	u, err := url.Parse(c.Target.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("target.url must be an absolute http(s) URL, got %q", c.Target.URL)
	}

	validEngines := map[string]bool{
		"chrome": true,
		"http":   true,
	}
	if !validEngines[c.Browser.Engine] {
		return fmt.Errorf("invalid browser.engine: %s (must be chrome or http)", c.Browser.Engine)
	}
	if c.Browser.Engine == "http" && looksLikeXPath(c.Target.Selector) {
		return fmt.Errorf("the http engine cannot evaluate XPath selectors; use a CSS selector or browser.engine: chrome")
	}

	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive")
	}
	if c.Monitor.HeartbeatInterval <= 0 {
		return fmt.Errorf("monitor.heartbeat_interval must be positive")
	}
	if c.Monitor.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("monitor.max_consecutive_failures must be positive")
	}

	if c.Notify.Telegram.Enabled {
		if strings.TrimSpace(c.Notify.Telegram.BotToken) == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
		}
		if strings.TrimSpace(c.Notify.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Notify.Slack.Enabled && strings.TrimSpace(c.Notify.Slack.WebhookURL) == "" {
		return fmt.Errorf("notify.slack.webhook_url is required when slack is enabled")
	}

	if _, err := c.Target.Location(); err != nil {
		return fmt.Errorf("invalid target.timezone %q: %w", c.Target.Timezone, err)
	}

	return nil
}

// HasSink reports whether at least one notification destination is
// configured and enabled.
func (c *NotifyConfig) HasSink() bool {
	if c == nil || !c.Enabled {
		return false
	}
	return c.Telegram.Enabled || c.Slack.Enabled || strings.TrimSpace(c.Bus.URL) != ""
}

// ExpectMode reports whether the monitor verifies an expected literal
// rather than detecting arbitrary changes.
func (t *TargetConfig) ExpectMode() bool {
	return strings.TrimSpace(t.ExpectedText) != ""
}

// Location resolves the configured timezone.
func (t *TargetConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(t.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

// looksLikeXPath mirrors the selector classification in pkg/browser, kept
// local so config stays a leaf package.
func looksLikeXPath(selector string) bool {
	return strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(//")
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// envDuration reads a duration from the environment. Bare integers are
// treated as seconds for compatibility with older deployments.
func envDuration(key string) (time.Duration, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	return 0, false
}
