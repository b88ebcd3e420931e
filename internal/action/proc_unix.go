//go:build !windows

package action

import (
	"syscall"

	"golang.org/x/sys/execabs"
	"golang.org/x/sys/unix"
)

func setProcAttr(cmd *execabs.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}
