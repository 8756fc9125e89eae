package history

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLog(t.TempDir(), time.Second, logger)
}

func entryAt(ts time.Time, iface, prev, next string) Entry {
	return Entry{
		Time:      ts,
		Interface: iface,
		Previous:  prev,
		New:       next,
		Trigger:   TriggerManual,
	}
}

func TestAppendAndEntries(t *testing.T) {
	l := newTestLog(t)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := entryAt(base.Add(time.Duration(i)*time.Minute), "eth0", "11:22:33:44:55:66", "aa:bb:cc:dd:ee:ff")
		if err := l.Append(e); err != nil {
			t.Fatalf("Append() #%d error = %v", i, err)
		}
	}

	got, err := l.Entries(Query{})
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Entries() returned %d entries, want 3", len(got))
	}
	// Oldest first.
	for i := 1; i < len(got); i++ {
		if got[i].Time.Before(got[i-1].Time) {
			t.Errorf("entries out of order at index %d", i)
		}
	}
}

func TestEntries_FilterByInterface(t *testing.T) {
	l := newTestLog(t)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	_ = l.Append(entryAt(base, "eth0", "a", "b"))
	_ = l.Append(entryAt(base.Add(time.Minute), "wlan0", "c", "d"))

	got, err := l.Entries(Query{Interface: "wlan0"})
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 1 || got[0].Interface != "wlan0" {
		t.Errorf("Entries(wlan0) = %+v, want single wlan0 entry", got)
	}
}

func TestEntries_FilterByTimeRange(t *testing.T) {
	l := newTestLog(t)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_ = l.Append(entryAt(base.Add(time.Duration(i)*time.Hour), "eth0", "a", "b"))
	}

	got, err := l.Entries(Query{From: base.Add(time.Hour), To: base.Add(3 * time.Hour)})
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Entries(range) returned %d entries, want 3", len(got))
	}
}

func TestIterate_StopsEarly(t *testing.T) {
	l := newTestLog(t)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = l.Append(entryAt(base.Add(time.Duration(i)*time.Minute), "eth0", "a", "b"))
	}

	count := 0
	err := l.Iterate(Query{}, func(Entry) bool {
		count++
		return count < 2
	})
	if err != nil {
		t.Fatalf("Iterate() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Iterate() visited %d entries after stop, want 2", count)
	}
}

// breakLogFile points the log file at a nonexistent target so writes
// fail while the data directory itself stays usable.
func breakLogFile(t *testing.T, dir string) {
	t.Helper()
	target := filepath.Join(dir, "missing", logFileName)
	if err := os.Symlink(target, filepath.Join(dir, logFileName)); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
}

func fixLogFile(t *testing.T, dir string) {
	t.Helper()
	if err := os.Remove(filepath.Join(dir, logFileName)); err != nil {
		t.Fatal(err)
	}
}

func TestAppend_SurvivesPersistenceFailure(t *testing.T) {
	dir := t.TempDir()
	breakLogFile(t, dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewLog(dir, time.Second, logger)

	e := entryAt(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), "eth0", "a", "b")
	if err := l.Append(e); err == nil {
		t.Fatal("Append() error = nil, want persistence error")
	}

	// The in-memory trail must still serve the entry for this run.
	got, err := l.Entries(Query{})
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Entries() returned %d entries, want the unpersisted one", len(got))
	}
}

func TestEntries_KeepsUnpersistedEntryAfterLaterPersist(t *testing.T) {
	dir := t.TempDir()
	breakLogFile(t, dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewLog(dir, time.Second, logger)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	// First append fails to persist, then the disk recovers and a
	// later append succeeds. Both entries must stay queryable, oldest
	// first.
	first := entryAt(base, "eth0", "a", "b")
	if err := l.Append(first); err == nil {
		t.Fatal("Append() error = nil, want persistence error")
	}
	fixLogFile(t, dir)
	second := entryAt(base.Add(time.Minute), "eth0", "b", "c")
	if err := l.Append(second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := l.Entries(Query{})
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Entries() returned %d entries, want 2", len(got))
	}
	if got[0].New != "b" || got[1].New != "c" {
		t.Errorf("Entries() order = [%s, %s], want the unpersisted entry first", got[0].New, got[1].New)
	}
}

func TestLog_SkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewLog(dir, time.Second, logger)

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := l.Append(entryAt(base, "eth0", "a", "b")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Inject a torn line.
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{torn json\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := l.Append(entryAt(base.Add(time.Minute), "eth0", "b", "c")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := l.Entries(Query{})
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Entries() returned %d entries, want 2 valid ones", len(got))
	}
}
