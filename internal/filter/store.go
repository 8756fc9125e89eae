package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/macshift/macshift/internal/fsutil"
	"github.com/macshift/macshift/internal/macaddr"
)

const (
	rulesFileName = "filters.json"
	lockFileName  = "filters.lock"
)

// Store persists filter rules as a JSON document in the data
// directory. Every mutation is a locked read-modify-write so separate
// process invocations cannot clobber each other.
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
		logger:      logger.With("component", "filter"),
	}
}

// Add inserts a rule for the given scope and prefix. Adding an entry
// that already exists is a no-op. The prefix is stored in canonical
// form.
func (s *Store) Add(scope Scope, prefix string) error {
	p, err := macaddr.ParsePrefix(prefix)
	if err != nil {
		return err
	}
	if scope != ScopeAllow && scope != ScopeDeny {
		return fmt.Errorf("filter: unknown scope %q", scope)
	}

	return s.withLock(func() error {
		rules, err := s.load()
		if err != nil {
			return err
		}
		for _, r := range rules {
			if r.Scope == scope && r.Prefix == p.String() {
				return nil
			}
		}
		rules = append(rules, Rule{Scope: scope, Prefix: p.String(), CreatedAt: time.Now().UTC()})
		if err := s.save(rules); err != nil {
			return err
		}
		s.logger.Info("filter rule added", "scope", string(scope), "prefix", p.String())
		return nil
	})
}

// Remove deletes the rule with the given scope and prefix. It returns
// false without error when no such rule exists.
func (s *Store) Remove(scope Scope, prefix string) (bool, error) {
	p, err := macaddr.ParsePrefix(prefix)
	if err != nil {
		return false, err
	}

	found := false
	err = s.withLock(func() error {
		rules, err := s.load()
		if err != nil {
			return err
		}
		kept := rules[:0]
		for _, r := range rules {
			if r.Scope == scope && r.Prefix == p.String() {
				found = true
				continue
			}
			kept = append(kept, r)
		}
		if !found {
			return nil
		}
		if err := s.save(kept); err != nil {
			return err
		}
		s.logger.Info("filter rule removed", "scope", string(scope), "prefix", p.String())
		return nil
	})
	return found, err
}

// List returns all configured rules in insertion order.
func (s *Store) List() ([]Rule, error) {
	var rules []Rule
	err := s.withLock(func() error {
		var err error
		rules, err = s.load()
		return err
	})
	return rules, err
}

// Snapshot loads the current rules and builds an evaluable Set.
func (s *Store) Snapshot() (*Set, error) {
	rules, err := s.List()
	if err != nil {
		return nil, err
	}
	return NewSet(rules)
}

func (s *Store) withLock(fn func() error) error {
	return fsutil.WithLock(filepath.Join(s.dataDir, lockFileName), s.lockTimeout, fn)
}

func (s *Store) load() ([]Rule, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, rulesFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("filter: read store: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("filter: parse store: %w", err)
	}
	return rules, nil
}

func (s *Store) save(rules []Rule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("filter: marshal store: %w", err)
	}
	return fsutil.WriteFileAtomic(s.dataDir, rulesFileName, data, 0o600)
}
