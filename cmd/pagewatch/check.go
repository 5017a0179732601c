package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odvcencio/pagewatch/pkg/browser"
	"github.com/odvcencio/pagewatch/pkg/monitor"
	"github.com/odvcencio/pagewatch/pkg/notify"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single check cycle and print the observed text",
	Long: `check runs one check cycle and exits. The exit code is 0 when the
element was observed (and matched, in expect mode), 1 otherwise, which
makes it useful for cron probes and selector debugging. Notifications
are suppressed unless --notify is given.`,
	RunE: runCheck,
}

func init() {
	addTargetFlags(checkCmd)
	checkCmd.Flags().Bool("notify", false, "deliver notifications for this check")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyTargetFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	logger, err := newLogger(cfg, runID)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var notifier *notify.Manager
	if sendNotify, _ := cmd.Flags().GetBool("notify"); sendNotify {
		notifier, err = buildNotifier(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
			os.Exit(1)
		}
		if notifier != nil {
			defer notifier.Close()
		}
	}

	engine, err := browser.New(cfg.Browser.Engine, browserOptions(cfg))
	if err != nil {
		return err
	}

	loc, err := cfg.Target.Location()
	if err != nil {
		return err
	}

	mon := monitor.New(monitor.Config{
		URL:               cfg.Target.URL,
		Selector:          cfg.Target.Selector,
		ExpectedText:      cfg.Target.ExpectedText,
		Location:          loc,
		HeartbeatInterval: time.Duration(cfg.Monitor.HeartbeatInterval),
		RunID:             runID,
	}, engine, notifier, logger)

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start %s engine: %w", engine.Name(), err)
	}
	defer engine.Close()

	res, err := mon.CheckOnce(ctx)
	if err != nil {
		return err
	}

	if !res.Observation.Found {
		fmt.Println("Element not found")
		os.Exit(1)
	}
	fmt.Println(res.Observation.Text)
	if mon.Mode() == monitor.ModeExpect && !res.Matched {
		fmt.Fprintf(os.Stderr, "Expected text %q not present\n", cfg.Target.ExpectedText)
		os.Exit(1)
	}
	return nil
}
