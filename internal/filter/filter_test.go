package filter

import (
	"testing"

	"github.com/macshift/macshift/internal/macaddr"
)

func mustAddr(t *testing.T, s string) macaddr.Address {
	t.Helper()
	a, err := macaddr.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", s, err)
	}
	return a
}

func mustSet(t *testing.T, rules []Rule) *Set {
	t.Helper()
	s, err := NewSet(rules)
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}
	return s
}

func TestIsAllowed_EmptyFilters(t *testing.T) {
	s := mustSet(t, nil)
	if !s.IsAllowed(mustAddr(t, "aa:bb:cc:11:22:33")) {
		t.Error("IsAllowed() = false with no filters configured, want true")
	}
}

func TestIsAllowed_BlacklistRejects(t *testing.T) {
	s := mustSet(t, []Rule{{Scope: ScopeDeny, Prefix: "aa:bb:cc"}})

	if s.IsAllowed(mustAddr(t, "aa:bb:cc:11:22:33")) {
		t.Error("IsAllowed(blacklisted) = true, want false")
	}
	if !s.IsAllowed(mustAddr(t, "aa:bb:cd:11:22:33")) {
		t.Error("IsAllowed(non-matching) = false, want true")
	}
}

func TestIsAllowed_DenyWinsOverEqualWhitelist(t *testing.T) {
	// Blacklist entry aa:bb:cc rejects aa:bb:cc:11:22:33 even if the
	// whitelist contains the same prefix.
	s := mustSet(t, []Rule{
		{Scope: ScopeDeny, Prefix: "aa:bb:cc"},
		{Scope: ScopeAllow, Prefix: "aa:bb:cc"},
	})
	if s.IsAllowed(mustAddr(t, "aa:bb:cc:11:22:33")) {
		t.Error("IsAllowed() = true, want false: explicit deny must win")
	}
}

func TestIsAllowed_WhitelistRequiresMatch(t *testing.T) {
	s := mustSet(t, []Rule{{Scope: ScopeAllow, Prefix: "00:17:f2"}})

	if !s.IsAllowed(mustAddr(t, "00:17:f2:01:02:03")) {
		t.Error("IsAllowed(whitelisted) = false, want true")
	}
	if s.IsAllowed(mustAddr(t, "aa:bb:cc:11:22:33")) {
		t.Error("IsAllowed(not whitelisted) = true, want false")
	}
}

func TestIsAllowed_LongerAllowOverridesShorterDeny(t *testing.T) {
	// Longest configured prefix decides: a 4-octet allow carves an
	// exception out of a 3-octet deny.
	s := mustSet(t, []Rule{
		{Scope: ScopeDeny, Prefix: "aa:bb:cc"},
		{Scope: ScopeAllow, Prefix: "aa:bb:cc:11"},
	})
	if !s.IsAllowed(mustAddr(t, "aa:bb:cc:11:22:33")) {
		t.Error("IsAllowed() = false, want true: longer allow prefix should win")
	}
	if s.IsAllowed(mustAddr(t, "aa:bb:cc:99:22:33")) {
		t.Error("IsAllowed() = true, want false: deny prefix still applies elsewhere")
	}
}

func TestNewSet_InvalidRules(t *testing.T) {
	if _, err := NewSet([]Rule{{Scope: ScopeDeny, Prefix: "not-a-prefix"}}); err == nil {
		t.Error("NewSet(bad prefix) error = nil, want error")
	}
	if _, err := NewSet([]Rule{{Scope: "block", Prefix: "aa:bb"}}); err == nil {
		t.Error("NewSet(bad scope) error = nil, want error")
	}
}
