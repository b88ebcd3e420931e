//go:build !windows

package lock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isProcessAlive sends signal 0 to pid. EPERM means the process exists but
// belongs to another user.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
