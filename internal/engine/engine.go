// Package engine is the rule & state facade: it decides what address
// an interface should carry, enforces the filter policy, guarantees
// the backup/restore invariant, and records every transition. It never
// performs the privileged write itself; that is delegated to the
// platform adapter.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/macshift/macshift/internal/filter"
	"github.com/macshift/macshift/internal/history"
	"github.com/macshift/macshift/internal/ledger"
	"github.com/macshift/macshift/internal/macaddr"
	"github.com/macshift/macshift/internal/platform"
	"github.com/macshift/macshift/internal/rules"
	"github.com/macshift/macshift/internal/scheduler"
)

// ErrRuleViolation is returned when the candidate address is rejected
// by the whitelist/blacklist policy.
var ErrRuleViolation = errors.New("engine: address rejected by filter policy")

// Request describes one desired state change. Exactly one of Address,
// VendorPrefix, or Random selects the candidate source.
type Request struct {
	Interface string

	// Address is an explicit target, in any accepted textual form.
	Address string

	// Random requests a generated locally-administered address.
	Random bool

	// VendorPrefix requests a random suffix under the given prefix.
	VendorPrefix string

	// Permanent asks the platform adapter to persist across reboots.
	Permanent bool

	// Trigger records what initiated the request. Defaults to manual.
	Trigger history.Trigger

	// RuleName names the app rule behind a rule-triggered request.
	RuleName string

	// Privileged skips the filter check. Only rule-triggered requests
	// from rules marked privileged set this.
	Privileged bool

	// NoScheduleOverride prevents the engine from consulting the
	// scheduler. Watch mode sets it because it resolved the rule
	// itself before building the request.
	NoScheduleOverride bool
}

// Result reports a completed transition.
type Result struct {
	Interface string
	Previous  macaddr.Address
	New       macaddr.Address
	Trigger   history.Trigger
	RuleName  string

	// HistoryPersisted is false when the audit entry could not be
	// written to disk; the in-memory trail still has it.
	HistoryPersisted bool
}

// Engine composes the stores and the platform adapter. It holds no
// global state: construct one per process run and pass it around.
type Engine struct {
	cfg     Config
	filters *filter.Store
	ledger  *ledger.Ledger
	rules   *rules.Store
	history *history.Log
	adapter platform.Adapter
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Engine over the stores in cfg.DataDir.
func New(cfg Config, adapter platform.Adapter, logger *slog.Logger) *Engine {
	cfg.ApplyDefaults()
	return &Engine{
		cfg:     cfg,
		filters: filter.NewStore(cfg.DataDir, cfg.LockTimeout, logger),
		ledger:  ledger.New(cfg.DataDir, cfg.LockTimeout, logger),
		rules:   rules.NewStore(cfg.DataDir, cfg.LockTimeout, logger),
		history: history.NewLog(cfg.DataDir, cfg.LockTimeout, logger),
		adapter: adapter,
		logger:  logger.With("component", "engine"),
		now:     time.Now,
	}
}

// Rules exposes the rule store for CLI management commands.
func (e *Engine) Rules() *rules.Store { return e.rules }

// Filters exposes the filter store for CLI management commands.
func (e *Engine) Filters() *filter.Store { return e.filters }

// History exposes the audit log for CLI queries.
func (e *Engine) History() *history.Log { return e.history }

// Ledger exposes the backup ledger for CLI inspection.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Adapter exposes the platform adapter for CLI interface listing.
func (e *Engine) Adapter() platform.Adapter { return e.adapter }

// Apply drives one state change through the facade's states:
// Requested → Validated → Filtered → Resolved → BackedUp → Applied →
// Logged. Any failure aborts without partial writes: the ledger
// capture is committed strictly before the platform apply, and a
// failed apply leaves both the ledger and the history untouched
// except that an already-committed capture stays, since the original
// value remains safely recorded.
func (e *Engine) Apply(req Request) (Result, error) {
	if req.Trigger == "" {
		req.Trigger = history.TriggerManual
	}

	// Requested → Validated.
	candidate, err := e.validate(req)
	if err != nil {
		return Result{}, err
	}
	e.logger.Debug("request validated",
		"interface", req.Interface,
		"candidate", candidate.String(),
	)

	// Validated → Filtered.
	if !req.Privileged {
		if err := e.checkFilter(req.Interface, candidate); err != nil {
			return Result{}, err
		}
	}

	// Filtered → Resolved: a currently active app rule overrides the
	// manual request.
	if req.Trigger == history.TriggerManual && !req.NoScheduleOverride {
		rule, active, err := e.resolveRule(req.Interface)
		if err != nil {
			return Result{}, err
		}
		if active {
			override, err := e.targetOf(rule)
			if err != nil {
				return Result{}, err
			}
			e.logger.Info("scheduled rule overrides request",
				"interface", req.Interface,
				"rule", rule.Name,
				"target", override.String(),
			)
			if !rule.Privileged {
				if err := e.checkFilter(req.Interface, override); err != nil {
					return Result{}, err
				}
			}
			candidate = override
			req.Trigger = history.TriggerRule
			req.RuleName = rule.Name
		}
	}

	// Resolved → BackedUp: capture the original before any mutation.
	previous, err := e.adapter.CurrentMAC(req.Interface)
	if err != nil {
		return Result{}, fmt.Errorf("engine: read current address of %s: %w", req.Interface, err)
	}
	if _, err := e.ledger.CaptureIfAbsent(req.Interface, previous); err != nil {
		return Result{}, fmt.Errorf("engine: capture backup for %s: %w", req.Interface, err)
	}

	// BackedUp → Applied: the privileged write.
	if err := e.adapter.ApplyMAC(req.Interface, candidate, req.Permanent); err != nil {
		return Result{}, fmt.Errorf("engine: apply %s to %s: %w", candidate, req.Interface, err)
	}

	// Applied → Logged: always attempted; a persistence failure is
	// reported on the result, not as an overall failure.
	res := Result{
		Interface:        req.Interface,
		Previous:         previous,
		New:              candidate,
		Trigger:          req.Trigger,
		RuleName:         req.RuleName,
		HistoryPersisted: true,
	}
	if err := e.appendHistory(res); err != nil {
		res.HistoryPersisted = false
	}

	e.logger.Info("address changed",
		"interface", req.Interface,
		"previous", previous.String(),
		"new", candidate.String(),
		"trigger", string(req.Trigger),
	)
	return res, nil
}

// Restore re-applies the interface's original address and consumes the
// backup record. The record is deleted only after the adapter confirms
// the write; restoring to an already-correct value is a tolerated
// no-op at the adapter level.
func (e *Engine) Restore(iface string) (Result, error) {
	previous, err := e.adapter.CurrentMAC(iface)
	if err != nil {
		return Result{}, fmt.Errorf("engine: read current address of %s: %w", iface, err)
	}

	original, err := e.ledger.Restore(iface, func(addr macaddr.Address) error {
		return e.adapter.ApplyMAC(iface, addr, false)
	})
	if err != nil {
		return Result{}, fmt.Errorf("engine: restore %s: %w", iface, err)
	}

	res := Result{
		Interface:        iface,
		Previous:         previous,
		New:              original,
		Trigger:          history.TriggerRestore,
		HistoryPersisted: true,
	}
	if err := e.appendHistory(res); err != nil {
		res.HistoryPersisted = false
	}

	e.logger.Info("address restored",
		"interface", iface,
		"original", original.String(),
	)
	return res, nil
}

// ResolveNow returns the app rule currently governing iface, if any.
func (e *Engine) ResolveNow(iface string) (rules.AppRule, bool, error) {
	return e.resolveRule(iface)
}

// TargetOf computes the concrete address an app rule asks for.
// Explicit targets are deterministic; random and vendor targets draw a
// fresh address per call.
func (e *Engine) TargetOf(rule rules.AppRule) (macaddr.Address, error) {
	return e.targetOf(rule)
}

func (e *Engine) validate(req Request) (macaddr.Address, error) {
	if req.Interface == "" {
		return macaddr.Address{}, fmt.Errorf("%w: interface name must not be empty", macaddr.ErrInvalidFormat)
	}
	switch {
	case req.Address != "":
		addr, err := macaddr.Parse(req.Address)
		if err != nil {
			return macaddr.Address{}, fmt.Errorf("engine: request for %s: %w", req.Interface, err)
		}
		return addr, nil
	case req.VendorPrefix != "":
		p, err := macaddr.ParsePrefix(req.VendorPrefix)
		if err != nil {
			return macaddr.Address{}, fmt.Errorf("engine: request for %s: %w", req.Interface, err)
		}
		return macaddr.WithVendorPrefix(p)
	case req.Random:
		return macaddr.Generate(true)
	default:
		return macaddr.Address{}, fmt.Errorf("%w: request selects no address source", macaddr.ErrInvalidFormat)
	}
}

func (e *Engine) checkFilter(iface string, candidate macaddr.Address) error {
	set, err := e.filters.Snapshot()
	if err != nil {
		return fmt.Errorf("engine: load filters: %w", err)
	}
	if !set.IsAllowed(candidate) {
		return fmt.Errorf("%w: %s on %s", ErrRuleViolation, candidate, iface)
	}
	return nil
}

func (e *Engine) resolveRule(iface string) (rules.AppRule, bool, error) {
	snapshot, err := e.rules.List()
	if err != nil {
		return rules.AppRule{}, false, fmt.Errorf("engine: load rules: %w", err)
	}
	rule, ok, err := scheduler.Resolve(snapshot, iface, e.now())
	if err != nil {
		// A resolution conflict is an internal invariant violation.
		e.logger.Error("schedule conflict unresolved",
			"interface", iface,
			"error", err,
		)
		return rules.AppRule{}, false, err
	}
	return rule, ok, nil
}

func (e *Engine) targetOf(rule rules.AppRule) (macaddr.Address, error) {
	switch rule.Target {
	case rules.TargetExplicit:
		return macaddr.Parse(rule.Address)
	case rules.TargetVendor:
		p, err := macaddr.ParsePrefix(rule.VendorPrefix)
		if err != nil {
			return macaddr.Address{}, fmt.Errorf("engine: rule %q: %w", rule.Name, err)
		}
		return macaddr.WithVendorPrefix(p)
	case rules.TargetRandom:
		return macaddr.Generate(true)
	default:
		return macaddr.Address{}, fmt.Errorf("engine: rule %q: unknown target %q", rule.Name, rule.Target)
	}
}

func (e *Engine) appendHistory(res Result) error {
	err := e.history.Append(history.Entry{
		Time:      e.now().UTC(),
		Interface: res.Interface,
		Previous:  res.Previous.String(),
		New:       res.New.String(),
		Trigger:   res.Trigger,
		Rule:      res.RuleName,
	})
	if err != nil {
		e.logger.Warn("history entry not persisted",
			"interface", res.Interface,
			"error", err,
		)
	}
	return err
}
