// Package watch runs the scheduled-rule loop: it periodically asks the
// engine which app rule governs each interface and applies transitions
// through the engine facade. The engine itself stays reactive; all
// timing lives here.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/macshift/macshift/internal/engine"
	"github.com/macshift/macshift/internal/fsutil"
	"github.com/macshift/macshift/internal/history"
	"github.com/macshift/macshift/internal/ledger"
	"github.com/macshift/macshift/internal/rules"
)

// Runner drives the schedule loop for one process.
type Runner struct {
	eng       *engine.Engine
	cfg       Config
	dataDir   string
	logger    *slog.Logger
	triggerCh chan struct{}

	// active tracks the rule currently applied per interface, so a
	// tick only acts on transitions.
	active map[string]string
}

// NewRunner creates a Runner over the given engine. dataDir is the
// engine's data directory; the runner watches the rule store file in
// it for edits between ticks.
func NewRunner(eng *engine.Engine, cfg Config, dataDir string, logger *slog.Logger) *Runner {
	cfg.ApplyDefaults()
	return &Runner{
		eng:       eng,
		cfg:       cfg,
		dataDir:   dataDir,
		logger:    logger.With("component", "watch"),
		triggerCh: make(chan struct{}, 1),
		active:    make(map[string]string),
	}
}

// Trigger requests an immediate evaluation cycle. Rapid calls are
// coalesced into one extra cycle.
func (r *Runner) Trigger() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
		// Already a trigger pending; coalesce.
	}
}

// Run starts the loop. It blocks until ctx is cancelled. The first
// cycle runs immediately; later cycles run every cfg.Interval or when
// the rule store file changes.
func (r *Runner) Run(ctx context.Context) error {
	if r.eng == nil {
		return errors.New("watch: engine is nil")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: the store replaces the file
	// by rename, which would silently drop a file-level watch.
	if err := fsutil.EnsureDir(r.dataDir, 0o700); err != nil {
		return err
	}
	if err := watcher.Add(r.dataDir); err != nil {
		return err
	}
	rulesFile := filepath.Base(rules.RulesPath(r.dataDir))

	r.logger.Info("watch loop started",
		"interval", r.cfg.Interval,
		"interfaces", r.cfg.Interfaces,
	)

	r.runCycle()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("watch loop stopped")
			return ctx.Err()

		case <-ticker.C:
			r.runCycle()

		case <-r.triggerCh:
			r.runCycle()
			ticker.Reset(r.cfg.Interval)

		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed")
			}
			if filepath.Base(ev.Name) != rulesFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.logger.Debug("rule store changed on disk", "event", ev.Op.String())
			r.Trigger()

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed")
			}
			r.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// runCycle evaluates every watched interface once.
func (r *Runner) runCycle() {
	start := time.Now()

	interfaces := r.cfg.Interfaces
	if len(interfaces) == 0 {
		var err error
		interfaces, err = r.eng.Adapter().ListInterfaces()
		if err != nil {
			r.logger.Warn("cannot list interfaces", "error", err)
			return
		}
	}

	for _, iface := range interfaces {
		r.evaluate(iface)
	}

	r.logger.Debug("evaluation cycle completed",
		"interfaces", len(interfaces),
		"duration", time.Since(start),
	)
}

// evaluate applies or clears the governing rule for one interface.
func (r *Runner) evaluate(iface string) {
	rule, ok, err := r.eng.ResolveNow(iface)
	if err != nil {
		r.logger.Error("rule resolution failed", "interface", iface, "error", err)
		return
	}

	current := r.active[iface]

	switch {
	case ok && rule.Name != current:
		target, err := r.eng.TargetOf(rule)
		if err != nil {
			r.logger.Error("cannot compute rule target",
				"interface", iface,
				"rule", rule.Name,
				"error", err,
			)
			return
		}
		_, err = r.eng.Apply(engine.Request{
			Interface:          iface,
			Address:            target.String(),
			Trigger:            history.TriggerRule,
			RuleName:           rule.Name,
			Privileged:         rule.Privileged,
			NoScheduleOverride: true,
		})
		if err != nil {
			r.logger.Error("rule apply failed",
				"interface", iface,
				"rule", rule.Name,
				"error", err,
			)
			return
		}
		r.active[iface] = rule.Name
		r.logger.Info("rule applied",
			"interface", iface,
			"rule", rule.Name,
		)

	case !ok && current != "":
		// The governing rule deactivated: hand the interface back its
		// original address.
		if _, err := r.eng.Restore(iface); err != nil {
			if errors.Is(err, ledger.ErrNoBackup) {
				// Nothing was ever captured; just forget the rule.
				delete(r.active, iface)
				return
			}
			r.logger.Error("restore after rule deactivation failed",
				"interface", iface,
				"error", err,
			)
			return
		}
		delete(r.active, iface)
		r.logger.Info("rule deactivated, original address restored",
			"interface", iface,
			"rule", current,
		)
	}
}
