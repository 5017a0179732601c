package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/pagewatch/pkg/browser"
	"github.com/odvcencio/pagewatch/pkg/config"
	"github.com/odvcencio/pagewatch/pkg/logging"
	"github.com/odvcencio/pagewatch/pkg/monitor"
	"github.com/odvcencio/pagewatch/pkg/notify"
	"github.com/odvcencio/pagewatch/pkg/status"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watchdog loop",
	RunE:  runWatchdog,
}

func init() {
	addTargetFlags(runCmd)
	runCmd.Flags().String("status-addr", "", "bind address for the operator status listener")
	rootCmd.AddCommand(runCmd)
}

// addTargetFlags registers the flags shared by run and check. Flags win
// over both the config file and the environment.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "page URL to watch")
	cmd.Flags().String("selector", "", "element selector: CSS, #id, XPath, or auto")
	cmd.Flags().String("expected-text", "", "expect mode: literal the element text must contain")
	cmd.Flags().Duration("poll-interval", 0, "time between checks")
	cmd.Flags().String("engine", "", "page-fetch engine: chrome or http")
	cmd.Flags().Bool("headless", true, "run the browser headless")
}

func applyTargetFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Target.URL, _ = flags.GetString("url")
	}
	if flags.Changed("selector") {
		cfg.Target.Selector, _ = flags.GetString("selector")
	}
	if flags.Changed("expected-text") {
		cfg.Target.ExpectedText, _ = flags.GetString("expected-text")
	}
	if flags.Changed("poll-interval") {
		d, _ := flags.GetDuration("poll-interval")
		cfg.Monitor.PollInterval = config.Duration(d)
	}
	if flags.Changed("engine") {
		cfg.Browser.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless, _ = flags.GetBool("headless")
	}
}

func browserOptions(cfg *config.Config) browser.Options {
	return browser.Options{
		Headless:        cfg.Browser.Headless,
		CacheBust:       cfg.Browser.CacheBust,
		PageLoadTimeout: time.Duration(cfg.Browser.PageLoadTimeout),
		ElementTimeout:  time.Duration(cfg.Browser.ElementTimeout),
		SettleDelay:     time.Duration(cfg.Browser.SettleDelay),
		ReadyTimeout:    time.Duration(cfg.Browser.ReadyTimeout),
		WindowWidth:     cfg.Browser.WindowWidth,
		WindowHeight:    cfg.Browser.WindowHeight,
		UserAgent:       cfg.Browser.UserAgent,
		ChromePath:      cfg.Browser.ChromePath,
	}
}

// buildNotifier assembles the notification manager. The Telegram probe
// must succeed: a watchdog that cannot report is not running, it is lying.
func buildNotifier(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*notify.Manager, error) {
	if !cfg.Notify.Enabled {
		return nil, nil
	}

	var adapters []notify.Adapter

	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegramAdapter(notify.TelegramConfig{
			BotToken: cfg.Notify.Telegram.BotToken,
			ChatID:   cfg.Notify.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram adapter: %w", err)
		}

		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		username, err := tg.Probe(probeCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("telegram probe failed (check the bot token): %w", err)
		}
		logger.Info(logging.CategoryNotify, "telegram_connected", "telegram bot connected", map[string]any{
			"username": username,
		})
		adapters = append(adapters, tg)
	}

	if cfg.Notify.Slack.Enabled {
		slack, err := notify.NewSlackAdapter(notify.SlackConfig{
			WebhookURL: cfg.Notify.Slack.WebhookURL,
		})
		if err != nil {
			return nil, fmt.Errorf("slack adapter: %w", err)
		}
		adapters = append(adapters, slack)
	}

	var publisher notify.Publisher
	if cfg.Notify.Bus.URL != "" {
		pub, err := notify.NewNATSPublisher(notify.NATSConfig{
			URL:     cfg.Notify.Bus.URL,
			Subject: cfg.Notify.Bus.Subject,
		})
		if err != nil {
			return nil, fmt.Errorf("event bus: %w", err)
		}
		publisher = pub
	}

	if publisher == nil && len(adapters) == 0 {
		return nil, nil
	}
	return notify.NewManager(publisher, adapters...), nil
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyTargetFlags(cmd, cfg)
	if cmd.Flags().Changed("status-addr") {
		cfg.Status.BindAddress, _ = cmd.Flags().GetString("status-addr")
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		os.Exit(1)
	}
	if notifier != nil {
		defer notifier.Close()
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
		URL:                    cfg.Target.URL,
		Selector:               cfg.Target.Selector,
		ExpectedText:           cfg.Target.ExpectedText,
		Location:               loc,
		PollInterval:           time.Duration(cfg.Monitor.PollInterval),
		HeartbeatInterval:      time.Duration(cfg.Monitor.HeartbeatInterval),
		MaxConsecutiveFailures: cfg.Monitor.MaxConsecutiveFailures,
		StateFile:              cfg.Monitor.StateFile,
		RunID:                  runID,
	}, engine, notifier, logger)

	fmt.Printf("pagewatch %s watching %s (selector %q, %s mode, %s engine)\n",
		version, cfg.Target.URL, cfg.Target.Selector, mon.Mode(), cfg.Browser.Engine)
	fmt.Printf("Run log: %s\n", logger.RunLogPath())

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return mon.Run(groupCtx)
	})
	if cfg.Status.BindAddress != "" {
		srv := status.NewServer(cfg.Status.BindAddress, mon, logger)
		group.Go(func() error {
			return srv.Start(groupCtx)
		})
		fmt.Printf("Status listener on %s\n", cfg.Status.BindAddress)
	}

	if err := group.Wait(); err != nil {
		return err
	}
	fmt.Println("pagewatch stopped")
	return nil
}
