// Package scheduler decides which application rule, if any, governs an
// interface at a given instant. Resolve is a pure function over a rule
// snapshot and a clock value, so tests inject fixed times.
package scheduler

import (
	"errors"
	"sort"
	"time"

	"github.com/macshift/macshift/internal/rules"
)

// ErrConflictUnresolved indicates the deterministic tie-breaks failed
// to pick a single rule. Rule names are unique in the store, so this
// cannot happen through normal operation; seeing it means a scheduler
// bug and callers treat it as fatal.
var ErrConflictUnresolved = errors.New("scheduler: conflict unresolved")

// Resolve returns the single rule that should govern the interface at
// now, or ok=false when no rule matches.
//
// Conflict policy, applied in order until one rule remains:
//  1. narrowest total scheduled weekly duration (most specific wins),
//  2. most recently added or replaced rule,
//  3. lexicographically smallest application name.
func Resolve(snapshot []rules.AppRule, iface string, now time.Time) (rules.AppRule, bool, error) {
	var active []rules.AppRule
	for _, r := range snapshot {
		if r.Interface != iface {
			continue
		}
		if r.ActiveAt(now) {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return rules.AppRule{}, false, nil
	}
	if len(active) == 1 {
		return active[0], true, nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		di, dj := active[i].WeeklyMinutes(), active[j].WeeklyMinutes()
		if di != dj {
			return di < dj
		}
		if !active[i].UpdatedAt.Equal(active[j].UpdatedAt) {
			return active[i].UpdatedAt.After(active[j].UpdatedAt)
		}
		return active[i].Name < active[j].Name
	})

	winner := active[0]
	runnerUp := active[1]
	if winner.WeeklyMinutes() == runnerUp.WeeklyMinutes() &&
		winner.UpdatedAt.Equal(runnerUp.UpdatedAt) &&
		winner.Name == runnerUp.Name {
		// Identical on every axis: names are unique by construction,
		// so this is an internal invariant violation.
		return rules.AppRule{}, false, ErrConflictUnresolved
	}
	return winner, true, nil
}
