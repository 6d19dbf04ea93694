//go:build !windows

package command

import (
	"os/exec"
	"syscall"
)

func signalName(err *exec.ExitError) string {
	if status, ok := err.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return status.Signal().String()
	}
	return "unknown"
}
