package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/odvcencio/pagewatch/pkg/config"
	"github.com/odvcencio/pagewatch/pkg/logging"
	"github.com/odvcencio/pagewatch/pkg/paths"
)

var (
	cfgFile      string
	logDirFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "pagewatch",
	Short: "Watch one web page element and notify when it changes",
	Long: `pagewatch polls a single web page on a fixed interval, extracts the
text of one element (CSS selector, #id, XPath, or text-based auto
detection), and sends a notification via Telegram, Slack, or a NATS bus
when the content changes, goes missing, or deviates from an expected
literal.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default pagewatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&logDirFlag, "log-dir", "", "log directory (default .pagewatch/logs)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "minimum log level: debug, info, warn, error")
}

// loadDotEnv loads a .env file when one exists. Deployments driven purely
// by environment variables keep working without one.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}
}

// loadConfig layers the config file, environment, and the shared flag
// overrides. Validation is the caller's job, after command-specific flags
// are applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadPartial(cfgFile)
	if err != nil {
		return nil, err
	}
	if logDirFlag != "" {
		cfg.Logging.Dir = logDirFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	return cfg, nil
}

// newLogger constructs the structured run logger.
func newLogger(cfg *config.Config, runID string) (*logging.Logger, error) {
	dir := cfg.Logging.Dir
	if dir == "" {
		dir = paths.LogsBaseDir()
	}
	logger, err := logging.NewLogger(dir, runID)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	logger.SetMinLevel(logging.ParseLevel(cfg.Logging.Level))
	return logger, nil
}
