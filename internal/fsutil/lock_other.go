//go:build !unix

package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockBusy is returned when an exclusive lock cannot be acquired
// within the configured wait.
var ErrLockBusy = errors.New("fsutil: lock busy")

// FileLock is a placeholder on platforms without advisory file locks.
// The lock file is still created so concurrent invocations are at
// least visible; mutual exclusion is not enforced.
type FileLock struct {
	f *os.File
}

// AcquireLock opens (creating if needed) the lock file at path.
func AcquireLock(path string, _ time.Duration) (*FileLock, error) {
	if err := EnsureDir(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("fsutil: open lock file %s: %w", path, err)
	}
	return &FileLock{f: f}, nil
}

// Release closes the underlying file. A nil receiver is a no-op.
func (l *FileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

// WithLock acquires the lock at path, runs fn, and releases the lock on
// all exit paths.
func WithLock(path string, timeout time.Duration, fn func() error) error {
	lock, err := AcquireLock(path, timeout)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}
