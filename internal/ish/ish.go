// Package ish runs external commands for the build watchers.
package ish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/yaklabco/kiln/internal/log"
	"github.com/yaklabco/kiln/pkg/env"
	"github.com/yaklabco/kiln/pkg/fatal"
)

// ErrNoCommand is returned when a Cmd has no arguments.
var ErrNoCommand = errors.New("no command configured")

// Cmd describes one invocation.
type Cmd struct {
	Args    []string
	Dir     string
	Env     map[string]string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Verbose bool
}

// Exec runs the command. It reports whether the command actually ran; a
// command that ran and failed returns a fatal error carrying its exit code.
// $VAR references in the arguments are expanded from Env, then the process
// environment.
func Exec(ctx context.Context, c Cmd) (bool, error) {
	if len(c.Args) == 0 {
		return false, ErrNoCommand
	}

	expand := func(varName string) string {
		if s, ok := c.Env[varName]; ok {
			return s
		}
		return os.Getenv(varName)
	}

	args := make([]string, len(c.Args))
	for i := range c.Args {
		args[i] = os.Expand(c.Args[i], expand)
	}

	ran, code, err := run(ctx, c, args)
	if err == nil {
		return true, nil
	}
	if ran {
		return ran, fatal.Errorf(code, `running "%s" failed with exit code %d`, strings.Join(args, " "), code)
	}
	return ran, fmt.Errorf(`failed to run "%s": %w`, strings.Join(args, " "), err)
}

func run(ctx context.Context, c Cmd, args []string) (bool, int, error) {
	theCmd := exec.CommandContext(ctx, args[0], args[1:]...)
	theCmd.Dir = c.Dir
	theCmd.Env = env.Overlay(c.Env)
	theCmd.Stdin = c.Stdin
	theCmd.Stdout = c.Stdout
	theCmd.Stderr = c.Stderr

	if c.Verbose {
		quoted := make([]string, 0, len(args)-1)
		for _, arg := range args[1:] {
			quoted = append(quoted, fmt.Sprintf("%q", arg))
		}
		log.SimpleConsoleLogger.Println("exec:", args[0], strings.Join(quoted, " "))
	}
	err := theCmd.Run()

	return CmdRan(err), ExitStatus(err), err
}

// Output runs the command and returns its combined stdout and stderr.
func Output(ctx context.Context, c Cmd) (string, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf
	c.Stderr = buf
	_, err := Exec(ctx, c)
	return buf.String(), err
}

// CmdRan examines the error to determine if it was generated as a result of a
// command running via os/exec.Command.
func CmdRan(err error) bool {
	if err == nil {
		return true
	}
	var ee *exec.ExitError
	ok := errors.As(err, &ee)
	if ok {
		return ee.Exited()
	}
	return false
}

// ExitStatus returns the exit status of the error if it is an exec.ExitError
// or if it implements ExitStatus() int.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exit fatal.ExitStatuser
	if errors.As(err, &exit) {
		return exit.ExitStatus()
	}
	var e *exec.ExitError
	if errors.As(err, &e) {
		if ex, ok := e.Sys().(fatal.ExitStatuser); ok {
			return ex.ExitStatus()
		}
	}
	return 1
}
