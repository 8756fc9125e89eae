package filter

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/macshift/macshift/internal/macaddr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), time.Second, discardLogger())
}

func TestStore_AddAndList(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add(ScopeDeny, "AA:BB:CC"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(ScopeAllow, "00:17:f2"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	rules, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("List() returned %d rules, want 2", len(rules))
	}
	// Prefixes are canonicalized to lower-case colon form.
	if rules[0].Prefix != "aa:bb:cc" || rules[0].Scope != ScopeDeny {
		t.Errorf("rules[0] = %+v, want deny aa:bb:cc", rules[0])
	}
	if rules[1].Prefix != "00:17:f2" || rules[1].Scope != ScopeAllow {
		t.Errorf("rules[1] = %+v, want allow 00:17:f2", rules[1])
	}
}

func TestStore_AddDuplicateIsNoop(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 2; i++ {
		if err := s.Add(ScopeDeny, "aa:bb:cc"); err != nil {
			t.Fatalf("Add() #%d error = %v", i, err)
		}
	}
	rules, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rules) != 1 {
		t.Errorf("List() returned %d rules after duplicate Add, want 1", len(rules))
	}
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add(ScopeDeny, "aa:bb:cc"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	found, err := s.Remove(ScopeDeny, "aa:bb:cc")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !found {
		t.Error("Remove() = false, want true")
	}

	found, err = s.Remove(ScopeDeny, "aa:bb:cc")
	if err != nil {
		t.Fatalf("Remove() second call error = %v", err)
	}
	if found {
		t.Error("Remove() of absent rule = true, want false")
	}
}

func TestStore_InvalidPrefix(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(ScopeDeny, "xx:yy"); err == nil {
		t.Error("Add(invalid prefix) error = nil, want error")
	}
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	s1 := NewStore(dir, time.Second, discardLogger())
	if err := s1.Add(ScopeDeny, "aa:bb:cc"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	s2 := NewStore(dir, time.Second, discardLogger())
	set, err := s2.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	addr, err := macaddr.Parse("aa:bb:cc:01:02:03")
	if err != nil {
		t.Fatal(err)
	}
	if set.IsAllowed(addr) {
		t.Error("IsAllowed(blacklisted) = true after reload, want false")
	}
}
