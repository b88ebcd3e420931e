//go:build !windows

package ipc

import (
	"syscall"

	"golang.org/x/sys/execabs"
)

// setProcAttr starts the daemon in a new session so it survives the
// terminal that launched it.
func setProcAttr(cmd *execabs.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
