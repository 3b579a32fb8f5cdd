package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/ragline/ragline/internal/errors"
)

// DataLock guards the embedded stores against concurrent processes. The
// HNSW graph and bleve index are single-writer, so a node using embedded
// backends takes this lock for its whole lifetime.
type DataLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDataLock creates a lock at <dir>/ragline.lock.
func NewDataLock(dir string) *DataLock {
	lockPath := filepath.Join(dir, "ragline.lock")
	return &DataLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking. A held lock means
// another process owns the embedded stores.
func (l *DataLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return errors.New(errors.ErrCodeLockHeld,
			fmt.Sprintf("data directory is locked by another process: %s", l.path), nil).
			WithSuggestion("stop the other ragline process, or point this one at remote stores")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *DataLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *DataLock) Path() string {
	return l.path
}
