//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
	"time"
)

// setupProcessGroup runs the command in its own process group so a kill
// reaches the generator's children too.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup sends SIGTERM to the process group, then SIGKILL once
// grace has passed. A sitectl child uses the grace period to stop its own
// generator, which runs in a group of its own.
func killProcessGroup(cmd *exec.Cmd, grace time.Duration) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil || pgid <= 0 {
		return cmd.Process.Kill()
	}
	if grace <= 0 {
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return cmd.Process.Kill()
	}
	time.AfterFunc(grace, func() { _ = syscall.Kill(-pgid, syscall.SIGKILL) })
	return nil
}
