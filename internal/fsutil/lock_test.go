//go:build unix

package fsutil

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireLock_AndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	l, err := AcquireLock(path, time.Second)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	// Lock must be reacquirable after release.
	l2, err := AcquireLock(path, time.Second)
	if err != nil {
		t.Fatalf("AcquireLock() after release error = %v", err)
	}
	if err := l2.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
}

func TestAcquireLock_Busy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	l, err := AcquireLock(path, time.Second)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	defer l.Release()

	// A second acquisition opens its own file description, so the flock
	// conflicts even within one process.
	_, err = AcquireLock(path, 150*time.Millisecond)
	if !errors.Is(err, ErrLockBusy) {
		t.Fatalf("AcquireLock() while held error = %v, want ErrLockBusy", err)
	}
}

func TestWithLock_RunsFn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	ran := false
	err := WithLock(path, time.Second, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}
	if !ran {
		t.Error("WithLock() did not invoke fn")
	}
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	wantErr := errors.New("boom")
	if err := WithLock(path, time.Second, func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("WithLock() error = %v, want %v", err, wantErr)
	}

	// The lock must have been released despite the error.
	l, err := AcquireLock(path, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("AcquireLock() after failed fn error = %v", err)
	}
	l.Release()
}

func TestRelease_Nil(t *testing.T) {
	var l *FileLock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() error = %v, want nil", err)
	}
}
