package ipc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/execabs"
)

var (
	// Test seams for spawn and socket probing.
	isRunningFn  = IsRunning
	executableFn = os.Executable
	startFn      = func(cmd *execabs.Cmd) error { return cmd.Start() }
)

// SpawnDaemon starts flare in daemon mode in the background, detached from
// the calling terminal. Output goes to logPath. It does not wait for the
// daemon to be ready.
func SpawnDaemon(ctx context.Context, logPath string, args ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	exe, err := executableFn()
	if err != nil {
		return 0, fmt.Errorf("failed to locate flare binary: %w", err)
	}
	exe, err = filepath.Abs(exe)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve flare binary: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G304: log path is from trusted config
	if err != nil {
		// Log file creation failed, use /dev/null
		logFile, _ = os.Open(os.DevNull)
	}
	defer logFile.Close()

	// execabs prevents executing binaries resolved to relative paths.
	cmd := execabs.Command(exe, append([]string{"--daemonize"}, args...)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), "FLARE_DAEMONIZE=true")

	// Detach from parent process group (platform-specific)
	setProcAttr(cmd)

	if err := startFn(cmd); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// Let it run independently; the caller exits without waiting.
	_ = cmd.Process.Release()
	return pid, nil
}

// WaitForSocket polls until an instance answers on path or timeout elapses.
func WaitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if isRunningFn(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("daemon did not start within %v", timeout)
		case <-ticker.C:
		}
	}
}

// EnsureDaemon makes sure an instance answers on path, spawning one if needed.
func EnsureDaemon(ctx context.Context, path, logPath string, timeout time.Duration) error {
	if isRunningFn(path) {
		return nil
	}
	if _, err := SpawnDaemon(ctx, logPath); err != nil {
		return err
	}
	return WaitForSocket(ctx, path, timeout)
}
