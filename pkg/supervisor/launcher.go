package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/yaklabco/kiln/pkg/env"
)

// Command is the application invocation.
type Command struct {
	Args []string
	Dir  string
	Env  map[string]string
}

// Process is a started OS process.
type Process interface {
	Pid() int
	// Signal delivers sig to the process and anything it spawned.
	Signal(sig os.Signal) error
	Kill() error
	// Wait blocks until the process exits.
	Wait() (*os.ProcessState, error)
}

// Launcher spawns processes. Spawn must not block on the process.
type Launcher interface {
	Spawn(cmd Command) (Process, error)
}

// ExecLauncher starts commands with os/exec, inheriting the terminal.
type ExecLauncher struct{}

// Spawn starts cmd with stdio inherited and cmd.Env overlaid on the current
// environment.
func (ExecLauncher) Spawn(cmd Command) (Process, error) {
	if len(cmd.Args) == 0 {
		return nil, ErrNoCommand
	}

	theCmd := exec.Command(cmd.Args[0], cmd.Args[1:]...)
	theCmd.Dir = cmd.Dir
	theCmd.Env = env.Overlay(cmd.Env)
	theCmd.Stdin = os.Stdin
	theCmd.Stdout = os.Stdout
	theCmd.Stderr = os.Stderr
	setProcessGroup(theCmd)

	if err := theCmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	return &execProcess{cmd: theCmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig os.Signal) error {
	return signalGroup(p.cmd.Process, sig)
}

func (p *execProcess) Kill() error {
	return killGroup(p.cmd.Process)
}

func (p *execProcess) Wait() (*os.ProcessState, error) {
	err := p.cmd.Wait()
	return p.cmd.ProcessState, err
}

// describeExit extracts the exit code and, when the process died from a
// signal, its name. Err is set only when the process could not be waited on.
func describeExit(state *os.ProcessState, waitErr error) (int, string, error) {
	if state == nil {
		return exitCodeFromError(waitErr), "", waitErr
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return state.ExitCode(), signalName(state), waitErr
	}

	return state.ExitCode(), signalName(state), nil
}

// exitCodeFromError returns 0 for nil, the code of an ExitError, and 1 for
// anything else.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
