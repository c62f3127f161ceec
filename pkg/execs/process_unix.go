//go:build unix

package execs

import (
	"os/exec"
	"syscall"
)

// setProcessGroup places the child in its own process group, so a later kill
// can target the whole group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err != nil {
		// Fall back to killing just the direct child.
		return cmd.Process.Kill() //nolint:wrapcheck // Return the original error.
	}

	return nil
}
