// Package supervisor owns the single running application process.
//
// A Supervisor holds at most one live Handle. Terminate never blocks; every
// handle's exit is reported exactly once on Exits, tagged with the reason this
// supervisor recorded when it terminated the handle, or ReasonExternal.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	klog "github.com/yaklabco/kiln/internal/log"
)

const (
	// DefaultGracefulTimeout bounds how long a terminated process may take to
	// exit before it is killed.
	DefaultGracefulTimeout = 5 * time.Second

	exitBuffer = 4
)

var (
	// ErrAlreadyRunning is returned by Launch while a live handle exists.
	ErrAlreadyRunning = errors.New("a process is already running")
	// ErrNoCommand is returned by Launch when no command is configured.
	ErrNoCommand = errors.New("no application command configured")
)

// KillReason tags why a process was terminated.
type KillReason int

const (
	ReasonExternal KillReason = iota
	ReasonRelaunching
	ReasonShutdown
)

func (r KillReason) String() string {
	switch r {
	case ReasonExternal:
		return "external"
	case ReasonRelaunching:
		return "relaunching"
	case ReasonShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("KillReason(%d)", int(r))
	}
}

// Handle identifies one launched process. The zero value means none.
type Handle struct {
	ID  string
	PID int
}

// IsZero reports whether h refers to no process.
func (h Handle) IsZero() bool {
	return h.ID == ""
}

// shortIDLen is how much of a handle ID String prints.
const shortIDLen = 8

func (h Handle) String() string {
	if h.IsZero() {
		return "none"
	}
	id := h.ID
	if len(id) > shortIDLen {
		id = id[:shortIDLen]
	}
	return fmt.Sprintf("%s(pid %d)", id, h.PID)
}

// Exit describes how a process ended.
type Exit struct {
	Handle Handle
	Reason KillReason
	Code   int
	Signal string
	Err    error
}

// Options configures a Supervisor.
type Options struct {
	Command         Command
	Launcher        Launcher
	StopSignal      os.Signal
	GracefulTimeout time.Duration
}

type slot struct {
	handle      Handle
	proc        Process
	reason      KillReason
	terminating bool
	killTimer   *time.Timer
}

// Supervisor launches and terminates one process at a time.
type Supervisor struct {
	command         Command
	launcher        Launcher
	stopSignal      os.Signal
	gracefulTimeout time.Duration

	mu    sync.Mutex
	live  *slot
	exits chan Exit
}

// New returns a Supervisor. A nil Launcher uses ExecLauncher.
func New(opts Options) *Supervisor {
	if opts.Launcher == nil {
		opts.Launcher = ExecLauncher{}
	}
	if opts.StopSignal == nil {
		opts.StopSignal = syscall.SIGTERM
	}
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = DefaultGracefulTimeout
	}

	return &Supervisor{
		command:         opts.Command,
		launcher:        opts.Launcher,
		stopSignal:      opts.StopSignal,
		gracefulTimeout: opts.GracefulTimeout,
		exits:           make(chan Exit, exitBuffer),
	}
}

// GracefulTimeout returns the configured grace period.
func (s *Supervisor) GracefulTimeout() time.Duration {
	return s.gracefulTimeout
}

// Exits delivers one Exit per launched handle.
func (s *Supervisor) Exits() <-chan Exit {
	return s.exits
}

// Current returns the live handle, or the zero Handle.
func (s *Supervisor) Current() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return Handle{}
	}
	return s.live.handle
}

// Launch starts the process and records it as the sole live handle.
func (s *Supervisor) Launch() (Handle, error) {
	if len(s.command.Args) == 0 {
		return Handle{}, ErrNoCommand
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live != nil {
		return Handle{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, s.live.handle)
	}

	proc, err := s.launcher.Spawn(s.command)
	if err != nil {
		return Handle{}, fmt.Errorf("spawning %q: %w", s.command.Args[0], err)
	}

	handle := Handle{ID: uuid.NewString(), PID: proc.Pid()}
	live := &slot{handle: handle, proc: proc}
	s.live = live

	slog.Debug("process launched", slog.String(klog.Handle, handle.ID), slog.Int(klog.Pid, handle.PID))

	go s.wait(live)

	return handle, nil
}

// Terminate asks the process behind h to stop and returns immediately. It
// reports false, doing nothing, when h is not the live handle or is already
// being terminated.
func (s *Supervisor) Terminate(h Handle, reason KillReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.live
	if live == nil || live.handle != h || live.terminating {
		return false
	}

	live.terminating = true
	live.reason = reason

	slog.Debug("terminating process",
		slog.String(klog.Handle, h.ID),
		slog.Int(klog.Pid, h.PID),
		slog.String(klog.Reason, reason.String()),
		slog.String(klog.Signal, s.stopSignal.String()),
	)

	if err := live.proc.Signal(s.stopSignal); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Warn("failed to signal process", slog.Int(klog.Pid, h.PID), slog.Any(klog.Error, err))
	}

	live.killTimer = time.AfterFunc(s.gracefulTimeout, func() {
		slog.Warn("graceful shutdown timeout, forcing kill",
			slog.Int(klog.Pid, h.PID), slog.Duration(klog.Duration, s.gracefulTimeout))
		if err := live.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Error("failed to kill process", slog.Int(klog.Pid, h.PID), slog.Any(klog.Error, err))
		}
	})

	return true
}

func (s *Supervisor) wait(live *slot) {
	state, waitErr := live.proc.Wait()

	s.mu.Lock()
	if live.killTimer != nil {
		live.killTimer.Stop()
	}
	exit := Exit{Handle: live.handle, Reason: ReasonExternal}
	if live.terminating {
		exit.Reason = live.reason
	}
	if s.live == live {
		s.live = nil
	}
	s.mu.Unlock()

	exit.Code, exit.Signal, exit.Err = describeExit(state, waitErr)

	s.exits <- exit
}
