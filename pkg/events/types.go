package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeBuildCompleted uint32 = iota + 1
	TypeResourcesSettled
	TypeProcessLaunched
	TypeLaunchFailed
	TypeTerminationRequested
	TypeProcessExited
	TypeStateChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// BuildCompletedEvent is published for every finished compile.
type BuildCompletedEvent struct {
	Target   string        `json:"target"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Output   string        `json:"output,omitempty"`
}

func (e BuildCompletedEvent) Type() uint32 { return TypeBuildCompleted }

// BuildCompleted describes a finished compile of target. err is nil on success.
func BuildCompleted(target string, err error, took time.Duration, output string) BuildCompletedEvent {
	e := BuildCompletedEvent{Target: target, Success: err == nil, Duration: took, Output: output}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// ResourcesSettledEvent is published once per quiet resource window.
type ResourcesSettledEvent struct {
	At time.Time `json:"at"`
}

func (e ResourcesSettledEvent) Type() uint32 { return TypeResourcesSettled }

// ProcessLaunchedEvent is published after a successful spawn.
type ProcessLaunchedEvent struct {
	HandleID string `json:"handle_id"`
	PID      int    `json:"pid"`
}

func (e ProcessLaunchedEvent) Type() uint32 { return TypeProcessLaunched }

// LaunchFailedEvent is published when the application could not be spawned.
type LaunchFailedEvent struct {
	Error string `json:"error"`
}

func (e LaunchFailedEvent) Type() uint32 { return TypeLaunchFailed }

// TerminationRequestedEvent is published when the coordinator stops a process.
type TerminationRequestedEvent struct {
	HandleID string `json:"handle_id"`
	PID      int    `json:"pid"`
	Reason   string `json:"reason"`
}

func (e TerminationRequestedEvent) Type() uint32 { return TypeTerminationRequested }

// ProcessExitedEvent is published once per exited process.
type ProcessExitedEvent struct {
	HandleID string `json:"handle_id"`
	PID      int    `json:"pid"`
	Reason   string `json:"reason"`
	Code     int    `json:"code"`
	Signal   string `json:"signal,omitempty"`
}

func (e ProcessExitedEvent) Type() uint32 { return TypeProcessExited }

// StateChangedEvent is published on every coordinator transition.
type StateChangedEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }
