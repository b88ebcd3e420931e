//go:build windows

package action

import (
	"os"
	"syscall"

	"golang.org/x/sys/execabs"
	"golang.org/x/sys/windows"
)

func setProcAttr(cmd *execabs.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminate kills the process; Windows has no SIGTERM.
func terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
