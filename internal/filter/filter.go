// Package filter implements the whitelist/blacklist prefix filter that
// gates candidate MAC addresses before any mutation.
package filter

import (
	"fmt"
	"time"

	"github.com/macshift/macshift/internal/macaddr"
)

// Scope says whether a rule allows or denies matching addresses.
type Scope string

// Filter rule scopes.
const (
	ScopeAllow Scope = "allow"
	ScopeDeny  Scope = "deny"
)

// Rule is a single whitelist or blacklist entry. Rules are unique by
// (scope, prefix).
type Rule struct {
	Scope     Scope     `json:"scope"`
	Prefix    string    `json:"prefix"` // canonical colon form, 1-6 octets
	CreatedAt time.Time `json:"created_at"`
}

// Set is an in-memory view of the configured filter rules, ready for
// evaluation. Build one from a Store snapshot.
type Set struct {
	allow []macaddr.Prefix
	deny  []macaddr.Prefix
}

// NewSet parses the given rules into an evaluable Set. Rules with
// unparseable prefixes are rejected.
func NewSet(rules []Rule) (*Set, error) {
	s := &Set{}
	for _, r := range rules {
		p, err := macaddr.ParsePrefix(r.Prefix)
		if err != nil {
			return nil, fmt.Errorf("filter: rule %s %q: %w", r.Scope, r.Prefix, err)
		}
		switch r.Scope {
		case ScopeAllow:
			s.allow = append(s.allow, p)
		case ScopeDeny:
			s.deny = append(s.deny, p)
		default:
			return nil, fmt.Errorf("filter: rule %q: unknown scope %q", r.Prefix, r.Scope)
		}
	}
	return s, nil
}

// IsAllowed evaluates the candidate against the configured filters.
//
// Policy: a non-empty blacklist rejects any candidate matching one of
// its prefixes; an explicit deny always wins over an allow entry for
// the same or a shorter prefix. Otherwise a non-empty whitelist
// requires the candidate to match at least one entry. An empty
// whitelist accepts every non-blacklisted candidate. Matching is
// octet-exact over each configured prefix; the longest configured
// match decides, and at equal length deny wins.
func (s *Set) IsAllowed(candidate macaddr.Address) bool {
	denyLen := longestMatch(s.deny, candidate)
	if denyLen > 0 {
		allowLen := longestMatch(s.allow, candidate)
		// Deny wins unless a strictly longer allow prefix matches.
		if allowLen <= denyLen {
			return false
		}
		return true
	}
	if len(s.allow) == 0 {
		return true
	}
	return longestMatch(s.allow, candidate) > 0
}

// longestMatch returns the length in octets of the longest prefix in
// ps matching the candidate, or 0 if none match.
func longestMatch(ps []macaddr.Prefix, a macaddr.Address) int {
	best := 0
	for _, p := range ps {
		if p.Match(a) && p.Len() > best {
			best = p.Len()
		}
	}
	return best
}
