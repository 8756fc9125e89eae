// Package ledger persists the original MAC address of each interface
// so it can always be restored. A record is captured once, before the
// first mutation, and consumed only by a confirmed restore.
package ledger

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
	ledgerFileName = "backups.json"
	lockFileName   = "backups.lock"
)

// ErrNoBackup is returned by Restore when no record exists for the
// interface.
var ErrNoBackup = errors.New("ledger: no backup found")

// Record is the original address of one interface.
type Record struct {
	Interface  string    `json:"interface"`
	Original   string    `json:"original"` // canonical colon form
	CapturedAt time.Time `json:"captured_at"`
}

// OriginalAddress returns the recorded address as a parsed value.
func (r Record) OriginalAddress() (macaddr.Address, error) {
	return macaddr.Parse(r.Original)
}

// Ledger is the persisted per-interface backup store. Records are kept
// in a single JSON document keyed by interface name; every operation
// is a locked read-modify-write.
type Ledger struct {
	dataDir     string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// New creates a Ledger rooted at dataDir.
func New(dataDir string, lockTimeout time.Duration, logger *slog.Logger) *Ledger {
	return &Ledger{
		dataDir:     dataDir,
		lockTimeout: lockTimeout,
		logger:      logger.With("component", "ledger"),
	}
}

// CaptureIfAbsent records current as the original address of iface. If
// a record already exists it is returned unchanged: the first captured
// value survives repeated mutations until a restore consumes it.
func (l *Ledger) CaptureIfAbsent(iface string, current macaddr.Address) (Record, error) {
	var rec Record
	err := l.withLock(func() error {
		records, err := l.load()
		if err != nil {
			return err
		}
		if existing, ok := records[iface]; ok {
			rec = existing
			return nil
		}
		rec = Record{
			Interface:  iface,
			Original:   current.String(),
			CapturedAt: time.Now().UTC(),
		}
		records[iface] = rec
		if err := l.save(records); err != nil {
			return err
		}
		l.logger.Info("original address captured",
			"interface", iface,
			"original", rec.Original,
		)
		return nil
	})
	return rec, err
}

// Get returns the record for iface, or ErrNoBackup.
func (l *Ledger) Get(iface string) (Record, error) {
	var rec Record
	err := l.withLock(func() error {
		records, err := l.load()
		if err != nil {
			return err
		}
		existing, ok := records[iface]
		if !ok {
			return fmt.Errorf("%w: interface %s", ErrNoBackup, iface)
		}
		rec = existing
		return nil
	})
	return rec, err
}

// Restore looks up the original address for iface, invokes apply with
// it, and deletes the record only if apply reports success. The lock
// is held across the whole sequence, so the record is consumed in the
// same logical step as the confirmed external apply — never before.
func (l *Ledger) Restore(iface string, apply func(macaddr.Address) error) (macaddr.Address, error) {
	var original macaddr.Address
	err := l.withLock(func() error {
		records, err := l.load()
		if err != nil {
			return err
		}
		rec, ok := records[iface]
		if !ok {
			return fmt.Errorf("%w: interface %s", ErrNoBackup, iface)
		}
		original, err = rec.OriginalAddress()
		if err != nil {
			return fmt.Errorf("ledger: corrupt record for %s: %w", iface, err)
		}
		if err := apply(original); err != nil {
			// Apply failed: the record stays, the original remains recoverable.
			return err
		}
		delete(records, iface)
		if err := l.save(records); err != nil {
			return err
		}
		l.logger.Info("original address restored",
			"interface", iface,
			"original", rec.Original,
		)
		return nil
	})
	return original, err
}

// List returns all records, keyed by interface name.
func (l *Ledger) List() (map[string]Record, error) {
	var records map[string]Record
	err := l.withLock(func() error {
		var err error
		records, err = l.load()
		return err
	})
	return records, err
}

func (l *Ledger) withLock(fn func() error) error {
	return fsutil.WithLock(filepath.Join(l.dataDir, lockFileName), l.lockTimeout, fn)
}

func (l *Ledger) load() (map[string]Record, error) {
	data, err := os.ReadFile(filepath.Join(l.dataDir, ledgerFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]Record), nil
		}
		return nil, fmt.Errorf("ledger: read store: %w", err)
	}
	records := make(map[string]Record)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("ledger: parse store: %w", err)
	}
	return records, nil
}

func (l *Ledger) save(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: marshal store: %w", err)
	}
	return fsutil.WriteFileAtomic(l.dataDir, ledgerFileName, data, 0o600)
}
