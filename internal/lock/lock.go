// Package lock provides the single-instance lock file.
//
// The lock is a file holding the owner's pid.
// The pid is written to a temporary file that is then hard-linked into place,
// so the lock never exists without its content. A lock file whose pid is not
// alive is stale and is replaced; one without a readable pid is stale only
// once it is older than StartGrace.
// Release removes the file; callers defer it right after a successful Acquire.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// StartGrace is how long an unreadable lock file is assumed to belong to an
// instance that is still starting.
const StartGrace = 5 * time.Second

// AlreadyRunningError reports a lock held by a live process.
type AlreadyRunningError struct {
	PID  int
	Path string
}

func (e *AlreadyRunningError) Error() string {
	if e.PID <= 0 {
		return fmt.Sprintf("flare is starting, lock file: %s", e.Path)
	}
	return fmt.Sprintf("flare already running (PID %d), lock file: %s", e.PID, e.Path)
}

// LockFile is an acquired lock.
type LockFile struct {
	path string
	pid  int

	mu       sync.Mutex
	released bool
}

// Acquire takes the lock at path. It returns *AlreadyRunningError when a live
// process holds it.
func Acquire(path string) (*LockFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lf, err := create(path)
	if err == nil {
		return lf, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	pid, readErr := ReadPID(path)
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		return nil, readErr
	}
	if pid > 0 && isProcessAlive(pid) {
		return nil, &AlreadyRunningError{PID: pid, Path: path}
	}
	if pid <= 0 && readErr == nil && youngerThan(path, StartGrace) {
		return nil, &AlreadyRunningError{Path: path}
	}

	// Stale (or vanished) lock - remove and retry once.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale lock file: %w", err)
	}
	lf, err = create(path)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// Lost the race with another instance.
			if pid, rerr := ReadPID(path); rerr == nil && pid > 0 {
				return nil, &AlreadyRunningError{PID: pid, Path: path}
			}
		}
		return nil, fmt.Errorf("failed to acquire lock on retry: %w", err)
	}
	return lf, nil
}

func create(path string) (*LockFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	pid := os.Getpid()
	if _, err := fmt.Fprintf(tmp, "%d\n", pid); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to sync lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}

	// Link fails with EEXIST when the lock is taken, like O_EXCL.
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, os.ErrExist
		}
		return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
	}
	return &LockFile{path: path, pid: pid}, nil
}

func youngerThan(path string, d time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < d
}

// ReadPID returns the pid recorded at path. Unparseable content yields 0.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: lock path is from trusted config
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read lock file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return pid, nil
}

// Holder returns the pid recorded at path and whether that process is alive.
// A missing lock file yields os.ErrNotExist.
func Holder(path string) (int, bool, error) {
	pid, err := ReadPID(path)
	if err != nil {
		return 0, false, err
	}
	return pid, pid > 0 && isProcessAlive(pid), nil
}

// Path returns the lock file path.
func (l *LockFile) Path() string { return l.path }

// PID returns the pid written to the lock file.
func (l *LockFile) PID() int { return l.pid }

// Release removes the lock file. It is safe to call multiple times and does
// not remove a file that another process has since taken over.
func (l *LockFile) Release() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true

	if pid, err := ReadPID(l.path); err == nil && pid != 0 && pid != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
