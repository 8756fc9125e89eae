package ledger

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/macshift/macshift/internal/macaddr"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(t.TempDir(), time.Second, logger)
}

func mustAddr(t *testing.T, s string) macaddr.Address {
	t.Helper()
	a, err := macaddr.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", s, err)
	}
	return a
}

func TestCaptureIfAbsent_Idempotent(t *testing.T) {
	l := newTestLedger(t)
	first := mustAddr(t, "11:22:33:44:55:66")

	rec1, err := l.CaptureIfAbsent("eth0", first)
	if err != nil {
		t.Fatalf("CaptureIfAbsent() error = %v", err)
	}
	if rec1.Original != "11:22:33:44:55:66" {
		t.Errorf("Original = %q, want 11:22:33:44:55:66", rec1.Original)
	}

	// Second capture with a different current address must return the
	// original record untouched.
	rec2, err := l.CaptureIfAbsent("eth0", mustAddr(t, "aa:bb:cc:dd:ee:ff"))
	if err != nil {
		t.Fatalf("CaptureIfAbsent() second call error = %v", err)
	}
	if rec2 != rec1 {
		t.Errorf("second CaptureIfAbsent() = %+v, want identical record %+v", rec2, rec1)
	}
}

func TestRestore_ConsumesRecord(t *testing.T) {
	l := newTestLedger(t)
	original := mustAddr(t, "11:22:33:44:55:66")

	if _, err := l.CaptureIfAbsent("eth0", original); err != nil {
		t.Fatalf("CaptureIfAbsent() error = %v", err)
	}

	var applied macaddr.Address
	got, err := l.Restore("eth0", func(a macaddr.Address) error {
		applied = a
		return nil
	})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got != original {
		t.Errorf("Restore() = %v, want %v", got, original)
	}
	if applied != original {
		t.Errorf("apply invoked with %v, want %v", applied, original)
	}

	// Second restore must report no backup.
	_, err = l.Restore("eth0", func(macaddr.Address) error { return nil })
	if !errors.Is(err, ErrNoBackup) {
		t.Errorf("second Restore() error = %v, want ErrNoBackup", err)
	}
}

func TestRestore_KeepsRecordOnApplyFailure(t *testing.T) {
	l := newTestLedger(t)
	original := mustAddr(t, "11:22:33:44:55:66")

	if _, err := l.CaptureIfAbsent("eth0", original); err != nil {
		t.Fatalf("CaptureIfAbsent() error = %v", err)
	}

	applyErr := errors.New("interface busy")
	_, err := l.Restore("eth0", func(macaddr.Address) error { return applyErr })
	if !errors.Is(err, applyErr) {
		t.Fatalf("Restore() error = %v, want apply error", err)
	}

	// The record must survive the failed apply.
	rec, err := l.Get("eth0")
	if err != nil {
		t.Fatalf("Get() after failed restore error = %v", err)
	}
	if rec.Original != original.String() {
		t.Errorf("Original = %q, want %q", rec.Original, original.String())
	}
}

func TestRestore_NoBackup(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Restore("eth9", func(macaddr.Address) error { return nil })
	if !errors.Is(err, ErrNoBackup) {
		t.Errorf("Restore() error = %v, want ErrNoBackup", err)
	}
}

func TestLedger_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l1 := New(dir, time.Second, logger)
	if _, err := l1.CaptureIfAbsent("wlan0", mustAddr(t, "02:00:00:00:00:01")); err != nil {
		t.Fatalf("CaptureIfAbsent() error = %v", err)
	}

	l2 := New(dir, time.Second, logger)
	rec, err := l2.Get("wlan0")
	if err != nil {
		t.Fatalf("Get() after reload error = %v", err)
	}
	if rec.Original != "02:00:00:00:00:01" {
		t.Errorf("Original = %q, want 02:00:00:00:00:01", rec.Original)
	}
}
