//go:build unix

package sweep

import (
	"os/exec"
	"syscall"
)

// Trainers get their own process group so cancellation also takes down the
// dataloader workers they fork.
var sysProcAttr = &syscall.SysProcAttr{Setpgid: true}

func kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		cmd.Process.Kill()
	}
}
