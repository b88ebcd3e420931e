package ipc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/execabs"
)

// These tests swap package seams and must not run in parallel.

func TestSpawnDaemon_StartsDetached(t *testing.T) {
	truePath, err := execabs.LookPath("true")
	if err != nil {
		t.Skip("true binary not available")
	}

	var started *execabs.Cmd
	origExe, origStart := executableFn, startFn
	t.Cleanup(func() { executableFn, startFn = origExe, origStart })
	executableFn = func() (string, error) { return truePath, nil }
	startFn = func(cmd *execabs.Cmd) error {
		started = cmd
		return cmd.Start()
	}

	logPath := filepath.Join(t.TempDir(), "logs", "flare.log")
	pid, err := SpawnDaemon(context.Background(), logPath, "--config", "x.yaml")
	require.NoError(t, err)
	assert.Positive(t, pid)

	require.NotNil(t, started)
	assert.Equal(t, []string{truePath, "--daemonize", "--config", "x.yaml"}, started.Args)
	assert.Contains(t, started.Env, "FLARE_DAEMONIZE=true")
	assert.NotNil(t, started.SysProcAttr)
	assert.FileExists(t, logPath)
}

func TestSpawnDaemon_StartFailure(t *testing.T) {
	origExe, origStart := executableFn, startFn
	t.Cleanup(func() { executableFn, startFn = origExe, origStart })
	executableFn = func() (string, error) { return "/usr/bin/flare", nil }
	startFn = func(*execabs.Cmd) error { return errors.New("exec format error") }

	_, err := SpawnDaemon(context.Background(), filepath.Join(t.TempDir(), "flare.log"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start daemon")
}

func TestSpawnDaemon_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SpawnDaemon(ctx, filepath.Join(t.TempDir(), "flare.log"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnsureDaemon_AlreadyRunning(t *testing.T) {
	origRunning, origStart := isRunningFn, startFn
	t.Cleanup(func() { isRunningFn, startFn = origRunning, origStart })
	isRunningFn = func(string) bool { return true }
	startFn = func(*execabs.Cmd) error {
		t.Fatal("must not spawn when an instance is running")
		return nil
	}

	require.NoError(t, EnsureDaemon(context.Background(), "/tmp/x.sock", filepath.Join(t.TempDir(), "l"), time.Second))
}
