//go:build windows

package sweep

import (
	"os/exec"
	"syscall"
)

var sysProcAttr = &syscall.SysProcAttr{}

func kill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}
