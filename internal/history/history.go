// Package history keeps the append-only audit trail of every MAC
// address transition. Entries are stored one JSON document per line;
// the file rotates at a size threshold.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/macshift/macshift/internal/fsutil"
)

const (
	logFileName  = "history.log"
	lockFileName = "history.lock"

	// maxLogSize is the rotation threshold for the on-disk log.
	maxLogSize = 10 * 1024 * 1024

	// maxLogFiles is how many rotated generations are kept.
	maxLogFiles = 5
)

// Trigger says what caused a transition.
type Trigger string

// Transition triggers.
const (
	TriggerManual  Trigger = "manual"
	TriggerRule    Trigger = "rule"
	TriggerRestore Trigger = "restore"
)

// Entry is one recorded state transition.
type Entry struct {
	Time      time.Time `json:"time"`
	Interface string    `json:"interface"`
	Previous  string    `json:"previous"`
	New       string    `json:"new"`
	Trigger   Trigger   `json:"trigger"`
	Rule      string    `json:"rule,omitempty"`
}

// Query selects entries. Zero-valued fields match everything.
type Query struct {
	Interface string
	From      time.Time
	To        time.Time
}

func (q Query) matches(e Entry) bool {
	if q.Interface != "" && e.Interface != q.Interface {
		return false
	}
	if !q.From.IsZero() && e.Time.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.Time.After(q.To) {
		return false
	}
	return true
}

// Log is the audit trail. Appends always land in the in-memory list
// for the current run; persistence failures are reported but never
// block the in-memory record.
type Log struct {
	dataDir     string
	lockTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	pending []Entry // entries whose persist failed this run
}

// NewLog creates a Log rooted at dataDir.
func NewLog(dataDir string, lockTimeout time.Duration, logger *slog.Logger) *Log {
	return &Log{
		dataDir:     dataDir,
		lockTimeout: lockTimeout,
		logger:      logger.With("component", "history"),
	}
}

// Append records an entry. The entry is always retained for this run's
// queries; the returned error, if any, is the persistence failure and
// the caller decides how loudly to report it.
func (l *Log) Append(e Entry) error {
	err := fsutil.WithLock(filepath.Join(l.dataDir, lockFileName), l.lockTimeout, func() error {
		return l.persist(e)
	})
	if err != nil {
		// The entry never reached disk: keep it in memory so queries
		// for the rest of the run still see it.
		l.mu.Lock()
		l.pending = append(l.pending, e)
		l.mu.Unlock()
		l.logger.Warn("history entry not persisted",
			"interface", e.Interface,
			"error", err,
		)
		return fmt.Errorf("history: persist entry: %w", err)
	}
	return nil
}

// Iterate calls fn for each matching entry, oldest first, over a
// snapshot taken at call time. Iteration is single-pass: fn returning
// false stops it. Entries appended this run that failed to persist are
// still included.
func (l *Log) Iterate(q Query, fn func(Entry) bool) error {
	persisted, err := l.readAll()
	if err != nil {
		return err
	}

	// pending holds exactly the entries that never reached disk, so
	// the two sequences are disjoint; interleave them by time to keep
	// the oldest-first order.
	l.mu.Lock()
	snapshot := make([]Entry, 0, len(persisted)+len(l.pending))
	snapshot = append(snapshot, persisted...)
	snapshot = append(snapshot, l.pending...)
	l.mu.Unlock()
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].Time.Before(snapshot[j].Time)
	})

	for _, e := range snapshot {
		if !q.matches(e) {
			continue
		}
		if !fn(e) {
			return nil
		}
	}
	return nil
}

// Entries returns all matching entries, oldest first.
func (l *Log) Entries(q Query) ([]Entry, error) {
	var out []Entry
	err := l.Iterate(q, func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out, err
}

func (l *Log) persist(e Entry) error {
	path := filepath.Join(l.dataDir, logFileName)

	if info, err := os.Stat(path); err == nil && info.Size() > maxLogSize {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// rotate shifts history.log -> history.1.log -> ... keeping maxLogFiles
// generations.
func (l *Log) rotate() error {
	for i := maxLogFiles - 1; i >= 1; i-- {
		old := filepath.Join(l.dataDir, fmt.Sprintf("history.%d.log", i))
		next := filepath.Join(l.dataDir, fmt.Sprintf("history.%d.log", i+1))
		if _, err := os.Stat(old); err == nil {
			if err := os.Rename(old, next); err != nil {
				return err
			}
		}
	}
	current := filepath.Join(l.dataDir, logFileName)
	if _, err := os.Stat(current); err == nil {
		return os.Rename(current, filepath.Join(l.dataDir, "history.1.log"))
	}
	return nil
}

func (l *Log) readAll() ([]Entry, error) {
	f, err := os.Open(filepath.Join(l.dataDir, logFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			// Skip torn or corrupt lines rather than losing the rest
			// of the trail.
			l.logger.Warn("skipping corrupt history line", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history: scan log: %w", err)
	}
	return entries, nil
}
