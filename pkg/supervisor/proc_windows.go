//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// Windows cannot deliver SIGTERM; any stop signal kills the process.
func signalGroup(proc *os.Process, _ os.Signal) error {
	return proc.Kill()
}

func killGroup(proc *os.Process) error {
	return proc.Kill()
}

func signalName(*os.ProcessState) string {
	return ""
}
