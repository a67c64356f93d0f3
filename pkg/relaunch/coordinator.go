// Package relaunch decides when the application process is launched, killed
// and relaunched.
//
// A Coordinator owns a small state machine:
//
//	NoProcess   --qualifying event (ready)-->  Running      Launch
//	Running     --qualifying event-->          Terminating  Terminate(Relaunching)
//	Terminating --exit, Relaunching-->         Running      Launch
//	Terminating --exit, other reason-->        NoProcess
//	Running     --exit-->                      NoProcess
//
// All inputs are serialized onto the goroutine calling Run.
package relaunch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	klog "github.com/yaklabco/kiln/internal/log"
	"github.com/yaklabco/kiln/pkg/build"
	"github.com/yaklabco/kiln/pkg/events"
	"github.com/yaklabco/kiln/pkg/supervisor"
	"github.com/yaklabco/kiln/pkg/watch/readiness"
	"github.com/yaklabco/kiln/pkg/watch/wtarget"
)

const (
	inboxSize = 64

	// DefaultShutdownTimeout bounds how long Run waits for the application
	// to exit once its context is done.
	DefaultShutdownTimeout = supervisor.DefaultGracefulTimeout + 2*time.Second
)

var (
	// ErrStopped is returned by the entry points once Run has returned.
	ErrStopped = errors.New("coordinator stopped")

	// ErrNotReady is returned by RelaunchRequested before every required
	// target has built once.
	ErrNotReady = errors.New("waiting for first builds")
)

// Supervisor is the process owner the coordinator drives.
type Supervisor interface {
	Launch() (supervisor.Handle, error)
	Terminate(h supervisor.Handle, reason supervisor.KillReason) bool
	Exits() <-chan supervisor.Exit
}

// Options configures a Coordinator.
type Options struct {
	Gate            *readiness.Gate
	Supervisor      Supervisor
	Bus             *events.Bus
	ShutdownTimeout time.Duration
}

// Status is a point-in-time copy of the coordinator state.
type Status struct {
	State        State
	Ready        bool
	Built        []wtarget.ID
	Pending      []wtarget.ID
	Handle       supervisor.Handle
	Launches     int
	Terminations int
}

type input interface {
	cause() string
}

type buildFinished struct {
	err error
	res build.Result
}

func (b buildFinished) cause() string { return "build:" + b.res.Target.String() }

type resourcesSettled struct{}

func (resourcesSettled) cause() string { return "resources" }

type relaunchRequested struct {
	reply chan error
}

func (relaunchRequested) cause() string { return "manual" }

func (r relaunchRequested) respond(err error) {
	if r.reply != nil {
		r.reply <- err
	}
}

// Coordinator relaunches the application on qualifying events.
type Coordinator struct {
	gate            *readiness.Gate
	sup             Supervisor
	bus             *events.Bus
	shutdownTimeout time.Duration

	inbox chan input
	done  chan struct{}

	mu           sync.Mutex
	state        State
	handle       supervisor.Handle
	stopping     bool
	// exitPending is set when a relaunch found the process already gone. The
	// exit queued behind it then launches as if it were Relaunching.
	exitPending  bool
	launches     int
	terminations int
}

// New returns a Coordinator. Gate and Supervisor are required.
func New(opts Options) *Coordinator {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	return &Coordinator{
		gate:            opts.Gate,
		sup:             opts.Supervisor,
		bus:             opts.Bus,
		shutdownTimeout: opts.ShutdownTimeout,
		inbox:           make(chan input, inboxSize),
		done:            make(chan struct{}),
	}
}

// BuildFinished reports a completed compile. It matches build.Callback.
func (c *Coordinator) BuildFinished(err error, res build.Result) {
	if sendErr := c.send(buildFinished{err: err, res: res}); sendErr != nil {
		slog.Debug("dropping build result", slog.String(klog.Target, res.Target.String()), slog.Any(klog.Error, sendErr))
	}
}

// ResourcesSettled reports a quiet resource window.
func (c *Coordinator) ResourcesSettled() {
	if err := c.send(resourcesSettled{}); err != nil {
		slog.Debug("dropping resource settle", slog.Any(klog.Error, err))
	}
}

// RelaunchRequested asks for a relaunch and waits until the coordinator has
// taken it. It returns ErrNotReady before readiness and ErrStopped once the
// coordinator is shutting down.
func (c *Coordinator) RelaunchRequested() error {
	reply := make(chan error, 1)
	if err := c.send(relaunchRequested{reply: reply}); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	}
}

func (c *Coordinator) send(in input) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}

	select {
	case c.inbox <- in:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Status returns a snapshot of the coordinator.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		State:        c.state,
		Ready:        c.gate.IsReady(),
		Built:        c.gate.Ready(),
		Pending:      c.gate.Pending(),
		Handle:       c.handle,
		Launches:     c.launches,
		Terminations: c.terminations,
	}
}

// Run processes inputs and process exits until ctx is done. It then stops
// the application with ReasonShutdown and waits for its exit. Run must be
// called at most once.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		case in := <-c.inbox:
			c.dispatch(in)
		case exit := <-c.sup.Exits():
			c.handleExit(exit)
		}
	}
}

func (c *Coordinator) dispatch(in input) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg := in.(type) {
	case buildFinished:
		c.onBuild(msg)
	case resourcesSettled:
		c.bus.Publish(events.ResourcesSettledEvent{At: time.Now()})
		c.qualify(msg)
	case relaunchRequested:
		switch {
		case c.stopping:
			msg.respond(ErrStopped)
		case !c.gate.IsReady():
			msg.respond(ErrNotReady)
		default:
			c.qualify(msg)
			msg.respond(nil)
		}
	}
}

func (c *Coordinator) onBuild(msg buildFinished) {
	target := msg.res.Target.String()
	c.bus.Publish(events.BuildCompleted(target, msg.err, msg.res.Duration, msg.res.Output))

	if msg.err != nil {
		slog.Warn("build failed", slog.String(klog.Target, target), slog.Any(klog.Error, msg.err))
		return
	}

	if !c.gate.MarkReady(msg.res.Target) {
		slog.Debug("build for unrequired target", slog.String(klog.Target, target))
		return
	}
	c.qualify(msg)
}

// qualify applies a qualifying event. Callers hold c.mu.
func (c *Coordinator) qualify(in input) {
	if c.stopping {
		return
	}
	if !c.gate.IsReady() {
		slog.Debug("waiting for first builds",
			slog.String(klog.Op, in.cause()),
			slog.Any(klog.Target, lo.Map(c.gate.Pending(), func(id wtarget.ID, _ int) string { return id.String() })),
		)
		return
	}

	switch c.state {
	case StateNoProcess:
		c.launch(in.cause())
	case StateRunning:
		c.terminate(supervisor.ReasonRelaunching)
	case StateTerminating:
		// Absorbed into the relaunch already queued behind the exit.
		slog.Debug("relaunch already pending", slog.String(klog.Op, in.cause()))
	}
}

func (c *Coordinator) launch(cause string) {
	handle, err := c.sup.Launch()
	if err != nil {
		slog.Error("failed to launch application", slog.String(klog.Op, cause), slog.Any(klog.Error, err))
		c.bus.Publish(events.LaunchFailedEvent{Error: err.Error()})
		c.setState(StateNoProcess)
		return
	}

	c.handle = handle
	c.launches++
	slog.Info("application launched", slog.Int(klog.Pid, handle.PID), slog.String(klog.Op, cause))
	c.bus.Publish(events.ProcessLaunchedEvent{HandleID: handle.ID, PID: handle.PID})
	c.setState(StateRunning)
}

func (c *Coordinator) terminate(reason supervisor.KillReason) {
	if !c.sup.Terminate(c.handle, reason) {
		// The process already exited and its exit is still queued. Wait for
		// it in Terminating so the qualifying event is not lost.
		slog.Debug("process already exiting",
			slog.String(klog.Handle, c.handle.ID), slog.String(klog.Reason, reason.String()))
		c.exitPending = reason == supervisor.ReasonRelaunching
		c.setState(StateTerminating)
		return
	}

	c.terminations++
	c.bus.Publish(events.TerminationRequestedEvent{HandleID: c.handle.ID, PID: c.handle.PID, Reason: reason.String()})
	c.setState(StateTerminating)
}

func (c *Coordinator) handleExit(exit supervisor.Exit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle.IsZero() || exit.Handle != c.handle {
		slog.Debug("ignoring stale exit", slog.String(klog.Handle, exit.Handle.ID))
		return
	}

	c.bus.Publish(events.ProcessExitedEvent{
		HandleID: exit.Handle.ID,
		PID:      exit.Handle.PID,
		Reason:   exit.Reason.String(),
		Code:     exit.Code,
		Signal:   exit.Signal,
	})
	c.handle = supervisor.Handle{}
	relaunching := exit.Reason == supervisor.ReasonRelaunching || c.exitPending
	c.exitPending = false

	if c.state == StateTerminating && relaunching && !c.stopping {
		c.launch("relaunch")
		return
	}

	if exit.Reason == supervisor.ReasonExternal {
		slog.Info("application exited",
			slog.Int(klog.Pid, exit.Handle.PID),
			slog.Int(klog.Code, exit.Code),
			slog.String(klog.Signal, exit.Signal),
		)
	}
	c.setState(StateNoProcess)
}

// setState records a transition. Callers hold c.mu.
func (c *Coordinator) setState(next State) {
	if next == c.state {
		return
	}
	prev := c.state
	c.state = next
	slog.Debug("state changed", slog.String(klog.State, next.String()), slog.String(klog.From, prev.String()))
	c.bus.Publish(events.StateChangedEvent{From: prev.String(), To: next.String()})
}

func (c *Coordinator) shutdown() error {
	c.mu.Lock()
	c.stopping = true
	if c.state == StateRunning {
		c.terminate(supervisor.ReasonShutdown)
	}
	waiting := c.state == StateTerminating
	c.mu.Unlock()

	if !waiting {
		return nil
	}

	timer := time.NewTimer(c.shutdownTimeout)
	defer timer.Stop()
	for {
		select {
		case exit := <-c.sup.Exits():
			c.handleExit(exit)
			if c.Status().State == StateNoProcess {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("application did not exit within %s", c.shutdownTimeout)
		}
	}
}
