package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID is very high and unlikely to be a running process.
const deadPID = 999999999

func TestAcquire_Release(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "flare.lock")

	lf, err := Acquire(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), lf.PID())
	assert.Equal(t, lockPath, lf.Path())

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))

	require.NoError(t, lf.Release())
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err), "lock file should be removed after Release")
}

func TestAcquire_LivePIDFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lockPath := filepath.Join(dir, "flare.lock")

	first, err := Acquire(lockPath)
	require.NoError(t, err)
	defer first.Release()

	second, err := Acquire(lockPath)
	require.Error(t, err)
	assert.Nil(t, second)

	var running *AlreadyRunningError
	require.True(t, errors.As(err, &running))
	assert.Equal(t, os.Getpid(), running.PID)
	assert.Contains(t, err.Error(), "already running")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no second lock file may be created")

	pid, err := ReadPID(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_StalePIDRecovered(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "flare.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte(fmt.Sprintf("%d\n", deadPID)), 0o600))

	lf, err := Acquire(lockPath)
	require.NoError(t, err)
	defer lf.Release()

	pid, err := ReadPID(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_OldGarbageContentIsStale(t *testing.T) {
	t.Parallel()

	old := time.Now().Add(-2 * StartGrace)
	for _, content := range []string{"not-a-pid\n", ""} {
		lockPath := filepath.Join(t.TempDir(), "flare.lock")
		require.NoError(t, os.WriteFile(lockPath, []byte(content), 0o600))
		require.NoError(t, os.Chtimes(lockPath, old, old))

		lf, err := Acquire(lockPath)
		require.NoError(t, err, "content %q", content)
		require.NoError(t, lf.Release())
	}
}

func TestAcquire_FreshEmptyLockIsHeld(t *testing.T) {
	t.Parallel()

	// An instance that created the file but has not written its pid yet.
	lockPath := filepath.Join(t.TempDir(), "flare.lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	lf, err := Acquire(lockPath)
	require.Error(t, err)
	assert.Nil(t, lf)

	var running *AlreadyRunningError
	require.True(t, errors.As(err, &running))
	assert.Zero(t, running.PID)
	assert.Contains(t, err.Error(), "starting")

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Empty(t, data, "the in-progress lock must not be replaced")
}

func TestAcquire_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lf, err := Acquire(filepath.Join(dir, "flare.lock"))
	require.NoError(t, err)
	defer lf.Release()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "flare.lock", entries[0].Name())
}

func TestAcquire_CreatesDirectory(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "nested", "dir", "flare.lock")
	lf, err := Acquire(lockPath)
	require.NoError(t, err)
	defer lf.Release()

	info, err := os.Stat(filepath.Dir(lockPath))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAcquire_PermissionsSecure(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "flare.lock")
	lf, err := Acquire(lockPath)
	require.NoError(t, err)
	defer lf.Release()

	info, err := os.Stat(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRelease_Idempotent(t *testing.T) {
	t.Parallel()

	lf, err := Acquire(filepath.Join(t.TempDir(), "flare.lock"))
	require.NoError(t, err)
	require.NoError(t, lf.Release())
	require.NoError(t, lf.Release())

	var nilLock *LockFile
	assert.NoError(t, nilLock.Release())
}

func TestRelease_KeepsForeignLock(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "flare.lock")
	lf, err := Acquire(lockPath)
	require.NoError(t, err)

	// Another instance took over after ours was judged stale.
	require.NoError(t, os.WriteFile(lockPath, []byte("1\n"), 0o600))
	require.NoError(t, lf.Release())

	_, err = os.Stat(lockPath)
	assert.NoError(t, err)
}

func TestRelease_DeferredOnEarlyReturn(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "flare.lock")
	errEarly := errors.New("startup failed")

	run := func() error {
		lf, err := Acquire(lockPath)
		if err != nil {
			return err
		}
		defer lf.Release()
		return errEarly
	}
	assert.ErrorIs(t, run(), errEarly)
	_, err := os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRelease_DeferredOnPanic(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "flare.lock")
	func() {
		defer func() { _ = recover() }()
		lf, err := Acquire(lockPath)
		require.NoError(t, err)
		defer lf.Release()
		panic("boom")
	}()

	_, err := os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))
}

func TestIsProcessAlive(t *testing.T) {
	t.Parallel()

	assert.True(t, isProcessAlive(os.Getpid()))
	assert.False(t, isProcessAlive(deadPID))
	assert.False(t, isProcessAlive(0))
	assert.False(t, isProcessAlive(-1))
}

func TestReadPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "flare.lock")
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"valid PID", "12345\n", 12345},
		{"valid PID no newline", "12345", 12345},
		{"invalid PID", "abc\n", 0},
		{"empty", "", 0},
		{"PID with spaces", "  12345  \n", 12345},
	}
	for _, tt := range tests {
		require.NoError(t, os.WriteFile(lockPath, []byte(tt.content), 0o600))
		pid, err := ReadPID(lockPath)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, pid, tt.name)
	}

	_, err := ReadPID(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestHolder(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "flare.lock")

	_, _, err := Holder(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	lf, err := Acquire(path)
	require.NoError(t, err)
	defer lf.Release()

	pid, alive, err := Holder(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, alive)
}
