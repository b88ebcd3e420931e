//go:build windows

package ipc

import (
	"syscall"

	"golang.org/x/sys/execabs"
)

// setProcAttr detaches the daemon from the console's process group.
func setProcAttr(cmd *execabs.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
