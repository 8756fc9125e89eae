// Package rules owns the per-application MAC rules and their schedule
// windows. Rules are keyed by application name; adding a rule with an
// existing name replaces it.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/macshift/macshift/internal/fsutil"
	"github.com/macshift/macshift/internal/macaddr"
)

const (
	rulesFileName = "app_rules.json"
	lockFileName  = "app_rules.lock"
)

// Target modes for an AppRule.
const (
	TargetExplicit = "explicit" // apply Address verbatim
	TargetRandom   = "random"   // generate a locally-administered address
	TargetVendor   = "vendor"   // random suffix under VendorPrefix
)

// Window is one schedule interval: the rule is active on Day between
// Start and End (inclusive start, exclusive end), both "HH:MM".
type Window struct {
	Day   time.Weekday `json:"day"`
	Start string       `json:"start"`
	End   string       `json:"end"`
}

// Minutes returns the window bounds as minutes since midnight.
func (w Window) Minutes() (start, end int, err error) {
	start, err = parseHHMM(w.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("rules: window start %q: %w", w.Start, err)
	}
	end, err = parseHHMM(w.End)
	if err != nil {
		return 0, 0, fmt.Errorf("rules: window end %q: %w", w.End, err)
	}
	return start, end, nil
}

// Validate checks the window bounds: parseable times, start < end
// within the day.
func (w Window) Validate() error {
	start, end, err := w.Minutes()
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("rules: window %s %s-%s: start must be before end", w.Day, w.Start, w.End)
	}
	if w.Day < time.Sunday || w.Day > time.Saturday {
		return fmt.Errorf("rules: invalid day %d", w.Day)
	}
	return nil
}

// Contains reports whether the given weekday and minute-of-day fall
// inside the window.
func (w Window) Contains(day time.Weekday, minute int) bool {
	if day != w.Day {
		return false
	}
	start, end, err := w.Minutes()
	if err != nil {
		return false
	}
	return minute >= start && minute < end
}

// AppRule is one application-specific MAC override.
type AppRule struct {
	Name         string   `json:"name"`
	Interface    string   `json:"interface"`
	Target       string   `json:"target"` // explicit | random | vendor
	Address      string   `json:"address,omitempty"`
	VendorPrefix string   `json:"vendor_prefix,omitempty"`
	Schedule     []Window `json:"schedule,omitempty"`
	Enabled      bool     `json:"enabled"`

	// Privileged rules skip the whitelist/blacklist check when they
	// are applied by the scheduler.
	Privileged bool `json:"privileged,omitempty"`

	// UpdatedAt is set on every add or replace and breaks scheduling
	// ties in favor of the most recently changed rule.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the rule is internally consistent. Overlapping
// windows within one rule are permitted; they mean the rule is active
// for their union.
func (r AppRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rules: rule name must not be empty")
	}
	if strings.TrimSpace(r.Interface) == "" {
		return fmt.Errorf("rules: rule %q: interface must not be empty", r.Name)
	}
	switch r.Target {
	case TargetExplicit:
		if _, err := macaddr.Parse(r.Address); err != nil {
			return fmt.Errorf("rules: rule %q: %w", r.Name, err)
		}
	case TargetRandom:
		// Nothing further to check.
	case TargetVendor:
		if _, err := macaddr.ParsePrefix(r.VendorPrefix); err != nil {
			return fmt.Errorf("rules: rule %q: %w", r.Name, err)
		}
	default:
		return fmt.Errorf("rules: rule %q: unknown target %q", r.Name, r.Target)
	}
	for _, w := range r.Schedule {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("rules: rule %q: %w", r.Name, err)
		}
	}
	return nil
}

// WeeklyMinutes is the rule's total scheduled duration per week, with
// overlapping windows on the same day counted once (union). A rule
// with no schedule is always active: 7 days x 24 hours.
func (r AppRule) WeeklyMinutes() int {
	if len(r.Schedule) == 0 {
		return 7 * 24 * 60
	}
	total := 0
	for day := time.Sunday; day <= time.Saturday; day++ {
		var covered [24 * 60]bool
		for _, w := range r.Schedule {
			if w.Day != day {
				continue
			}
			start, end, err := w.Minutes()
			if err != nil {
				continue
			}
			for m := start; m < end && m < len(covered); m++ {
				covered[m] = true
			}
		}
		for _, c := range covered {
			if c {
				total++
			}
		}
	}
	return total
}

// ActiveAt reports whether the rule is enabled and now falls inside
// one of its windows. A rule with no schedule is active whenever it is
// enabled.
func (r AppRule) ActiveAt(now time.Time) bool {
	if !r.Enabled {
		return false
	}
	if len(r.Schedule) == 0 {
		return true
	}
	minute := now.Hour()*60 + now.Minute()
	for _, w := range r.Schedule {
		if w.Contains(now.Weekday(), minute) {
			return true
		}
	}
	return false
}

// storeDoc is the on-disk layout: rules in insertion order.
type storeDoc struct {
	Rules []AppRule `json:"rules"`
}

// Store persists AppRules as a JSON document under the store lock.
type Store struct {
	dataDir     string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewStore creates a Store rooted at dataDir.
func NewStore(dataDir string, lockTimeout time.Duration, logger *slog.Logger) *Store {
	return &Store{
		dataDir:     dataDir,
		lockTimeout: lockTimeout,
		logger:      logger.With("component", "rules"),
	}
}

// AddOrReplace validates the rule and inserts it, replacing any rule
// with the same name. A replaced rule keeps its position in the list;
// UpdatedAt is refreshed either way.
func (s *Store) AddOrReplace(rule AppRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now().UTC()

	return s.withLock(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		replaced := false
		for i, existing := range doc.Rules {
			if existing.Name == rule.Name {
				doc.Rules[i] = rule
				replaced = true
				break
			}
		}
		if !replaced {
			doc.Rules = append(doc.Rules, rule)
		}
		if err := s.save(doc); err != nil {
			return err
		}
		s.logger.Info("app rule stored",
			"rule", rule.Name,
			"interface", rule.Interface,
			"replaced", replaced,
		)
		return nil
	})
}

// Remove deletes the rule with the given name. It returns false
// without error when no such rule exists: a reported outcome, not a
// failure.
func (s *Store) Remove(name string) (bool, error) {
	found := false
	err := s.withLock(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		kept := doc.Rules[:0]
		for _, r := range doc.Rules {
			if r.Name == name {
				found = true
				continue
			}
			kept = append(kept, r)
		}
		if !found {
			return nil
		}
		doc.Rules = kept
		if err := s.save(doc); err != nil {
			return err
		}
		s.logger.Info("app rule removed", "rule", name)
		return nil
	})
	return found, err
}

// Get returns the named rule and whether it exists.
func (s *Store) Get(name string) (AppRule, bool, error) {
	var (
		rule AppRule
		ok   bool
	)
	err := s.withLock(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		for _, r := range doc.Rules {
			if r.Name == name {
				rule, ok = r, true
				return nil
			}
		}
		return nil
	})
	return rule, ok, err
}

// List returns all rules in insertion order.
func (s *Store) List() ([]AppRule, error) {
	var out []AppRule
	err := s.withLock(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		out = doc.Rules
		return nil
	})
	return out, err
}

func (s *Store) withLock(fn func() error) error {
	return fsutil.WithLock(filepath.Join(s.dataDir, lockFileName), s.lockTimeout, fn)
}

func (s *Store) load() (storeDoc, error) {
	var doc storeDoc
	data, err := os.ReadFile(filepath.Join(s.dataDir, rulesFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("rules: read store: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("rules: parse store: %w", err)
	}
	return doc, nil
}

func (s *Store) save(doc storeDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("rules: marshal store: %w", err)
	}
	return fsutil.WriteFileAtomic(s.dataDir, rulesFileName, data, 0o600)
}

// RulesPath returns the on-disk location of the rule store for the
// given data directory. Watch mode uses it to react to edits.
func RulesPath(dataDir string) string {
	return filepath.Join(dataDir, rulesFileName)
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
