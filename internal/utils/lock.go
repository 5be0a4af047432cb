package utils

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
)

// FileLock is an advisory cross-process lock guarding rewrites of a file
// that other vulnmap-api-import processes may also be writing.
type FileLock struct {
	lock *flock.Flock
	path string
}

// NewFileLock creates a lock living next to target as "<target>.lock".
func NewFileLock(target string) *FileLock {
	lockPath := target + lockFileSuffix
	return &FileLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}
}

// Lock acquires the lock, waiting if another process holds it.
func (l *FileLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		Log.Debugf("Another process is writing %s, waiting for it to finish", l.path)
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Lock file gone means we no longer hold anything.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file location.
func (l *FileLock) Path() string { return l.path }
