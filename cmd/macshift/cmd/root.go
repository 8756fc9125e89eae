// Package cmd implements the macshift CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/macshift/macshift/internal/agent"
	"github.com/macshift/macshift/internal/engine"
	"github.com/macshift/macshift/internal/fsutil"
	"github.com/macshift/macshift/internal/ledger"
	"github.com/macshift/macshift/internal/macaddr"
	"github.com/macshift/macshift/internal/platform"
	"github.com/macshift/macshift/internal/scheduler"
)

var (
	cfgFile  string
	logLevel string
	dataDir  string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("macshift version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "macshift",
	Short: "macshift manages MAC address identity under policy",
	Long: "macshift changes, restores, and audits the MAC addresses of local network\n" +
		"interfaces. Changes pass a whitelist/blacklist filter, the pre-change address\n" +
		"is backed up before the first mutation, every transition is logged, and\n" +
		"per-application rules with weekly schedules can drive changes automatically.",
	// No Run function — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/macshift/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for persisted state (overrides config)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("macshift version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps a command error to the process exit code. Each failure
// class gets its own code so scripts can branch without parsing text.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, macaddr.ErrInvalidFormat),
		errors.Is(err, macaddr.ErrInvalidPrefixLength):
		return 2
	case errors.Is(err, engine.ErrRuleViolation):
		return 3
	case errors.Is(err, ledger.ErrNoBackup):
		return 4
	case errors.Is(err, platform.ErrNotFound):
		return 5
	case errors.Is(err, platform.ErrPermissionDenied):
		return 6
	case errors.Is(err, platform.ErrUnsupported),
		errors.Is(err, platform.ErrCardIncompatible):
		return 7
	case errors.Is(err, fsutil.ErrLockBusy):
		return 8
	case errors.Is(err, scheduler.ErrConflictUnresolved):
		return 9
	default:
		return 1
	}
}

// loadRuntime parses the config file, applies CLI flag overrides, and
// builds the logger most commands start from.
func loadRuntime() (*agent.Config, *slog.Logger, error) {
	cfg, err := agent.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dataDir != "" {
		cfg.Engine.DataDir = dataDir
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

// newEngine builds the engine facade over the platform adapter for
// this OS.
func newEngine(cfg *agent.Config, logger *slog.Logger) *engine.Engine {
	return engine.New(cfg.Engine, platform.NewAdapter(logger), logger)
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// parseFormat maps the --format flag values to display formats.
func parseFormat(s string) (macaddr.Format, error) {
	switch s {
	case "", "colon":
		return macaddr.FormatColon, nil
	case "hyphen":
		return macaddr.FormatHyphen, nil
	case "dot":
		return macaddr.FormatDot, nil
	case "raw":
		return macaddr.FormatRaw, nil
	default:
		return macaddr.FormatColon, fmt.Errorf("macshift: unknown format %q (valid: colon, hyphen, dot, raw)", s)
	}
}
