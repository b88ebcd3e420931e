package daemon

import (
	"errors"
	"fmt"
	"os"
	"runtime"
)

// ErrRunningAsRoot is returned when the daemon would run with effective UID 0.
// The control socket launches commands, so a root daemon is refused.
var ErrRunningAsRoot = errors.New("refusing to run the flare daemon as root (UID 0)")

// ErrInsecureDirectory is returned when the runtime directory is accessible
// to other users.
var ErrInsecureDirectory = errors.New("runtime directory has insecure permissions")

// CheckNotRoot fails when the process runs as root. Skipped on Windows.
func CheckNotRoot() error {
	if runtime.GOOS != "windows" && os.Geteuid() == 0 {
		return ErrRunningAsRoot
	}
	return nil
}

// ValidateDirectoryPermissions requires dirPath to be mode 0700 when it
// exists. A missing directory is accepted.
func ValidateDirectoryPermissions(dirPath string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dirPath)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		return fmt.Errorf("%w: %s has mode %o; expected 0700", ErrInsecureDirectory, dirPath, perm)
	}
	return nil
}

// EnsureSecureDirectory creates dirPath with mode 0700, tightening the mode
// of an existing directory.
func EnsureSecureDirectory(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dirPath, err)
	}
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(dirPath)
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	if info.Mode().Perm() != 0o700 {
		if err := os.Chmod(dirPath, 0o700); err != nil { //nolint:gosec // G302: 0700 is the runtime directory mode
			return fmt.Errorf("failed to fix permissions on %s: %w", dirPath, err)
		}
	}
	return nil
}
