//go:build windows

package command

import "os/exec"

func signalName(err *exec.ExitError) string {
	return "unknown"
}
