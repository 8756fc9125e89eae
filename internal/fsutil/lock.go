//go:build unix

package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockBusy is returned when an exclusive lock cannot be acquired
// within the configured wait.
var ErrLockBusy = errors.New("fsutil: lock busy")

// lockPollInterval is the delay between non-blocking lock attempts.
const lockPollInterval = 50 * time.Millisecond

// FileLock is an exclusive advisory lock on a dedicated lock file.
// It coordinates separate process invocations sharing the same
// on-disk store; it is not a mutex for goroutines within one process.
type FileLock struct {
	f *os.File
}

// AcquireLock takes an exclusive flock on path, creating the file (and
// its directory) if needed. It polls with LOCK_NB until the lock is
// obtained or timeout elapses, in which case it returns ErrLockBusy.
// The lock never blocks indefinitely.
func AcquireLock(path string, timeout time.Duration) (*FileLock, error) {
	if err := EnsureDir(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("fsutil: open lock file %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &FileLock{f: f}, nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			f.Close()
			return nil, fmt.Errorf("fsutil: flock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("%w: %s (timeout %s)", ErrLockBusy, path, timeout)
		}
		time.Sleep(lockPollInterval)
	}
}

// Release drops the lock and closes the underlying file. It is safe to
// call once on every exit path; a nil receiver is a no-op.
func (l *FileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer l.f.Close()
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("fsutil: unlock: %w", err)
	}
	return nil
}

// WithLock acquires the lock at path, runs fn, and releases the lock on
// all exit paths. Every read-modify-write of a persisted store goes
// through this.
func WithLock(path string, timeout time.Duration, fn func() error) error {
	lock, err := AcquireLock(path, timeout)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}
