package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLockTimeout indicates the run lock wasn't released in time.
var ErrLockTimeout = errors.New("run lock acquisition timed out")

// RunLock serializes pipeline runs using flock(2). Reconciliation of the
// same organization's documents is not safe under concurrent mutation, so
// at most one run may be active per state directory; an overlapping cron
// invocation waits or gives up. The kernel releases the lock if the
// process dies mid-run.
type RunLock struct {
	path string
	file *os.File
}

// NewRunLock creates a run lock at the given path.
func NewRunLock(path string) *RunLock {
	return &RunLock{path: path}
}

// TryAcquire attempts to take the lock without blocking. It returns false
// when another run holds it.
func (l *RunLock) TryAcquire() (bool, error) {
	if err := l.open(); err != nil {
		return false, err
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		_ = l.file.Close()
		l.file = nil
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock failed: %w", err)
	}
	return true, nil
}

// Acquire blocks until the lock is available or the timeout expires.
func (l *RunLock) Acquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	pollInterval := 50 * time.Millisecond

	for {
		acquired, err := l.TryAcquire()
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		time.Sleep(pollInterval)
		pollInterval = min(pollInterval*2, 500*time.Millisecond)
	}
}

// Release releases the lock. Releasing an unheld lock is a no-op.
func (l *RunLock) Release() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

// Held reports whether this instance currently holds the lock.
func (l *RunLock) Held() bool {
	return l.file != nil
}

func (l *RunLock) open() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	l.file = file
	return nil
}
