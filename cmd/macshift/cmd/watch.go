package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/macshift/macshift/internal/watch"
)

var (
	watchInterfaces []string
	watchInterval   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the scheduled-rule loop",
	Long: "Run in the foreground, re-evaluating rule schedules every interval and\n" +
		"whenever the rule store changes on disk. The winning rule is applied per\n" +
		"interface when it changes; the original address is restored when the last\n" +
		"active rule deactivates. Stops on SIGINT or SIGTERM.",
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchInterfaces, "interface", nil, "interfaces to watch (default: all; repeatable)")
	watchCmd.Flags().StringVar(&watchInterval, "interval", "", "re-evaluation interval, e.g. 30s (overrides config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift watch: %w", err)
	}

	if len(watchInterfaces) > 0 {
		cfg.Watch.Interfaces = watchInterfaces
	}
	if watchInterval != "" {
		d, err := time.ParseDuration(watchInterval)
		if err != nil {
			return fmt.Errorf("macshift watch: parse --interval: %w", err)
		}
		cfg.Watch.Interval = d
	}
	if err := cfg.Watch.Validate(); err != nil {
		return fmt.Errorf("macshift watch: %w", err)
	}

	logger.Info("starting macshift watch",
		"version", buildVersion,
		"interval", cfg.Watch.Interval,
	)

	eng := newEngine(cfg, logger)
	runner := watch.NewRunner(eng, cfg.Watch, cfg.Engine.DataDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("macshift watch: %w", err)
	}
	logger.Info("macshift watch stopped")
	return nil
}
