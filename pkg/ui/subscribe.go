package ui

import (
	"github.com/yaklabco/kiln/pkg/events"
)

// Kill reasons as they appear on the bus.
const (
	reasonExternal    = "external"
	reasonRelaunching = "relaunching"
)

// Subscribe prints bus events until the returned function is called. With
// verbose set, the output of successful builds is printed too.
func (r *Reporter) Subscribe(bus *events.Bus, verbose bool) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.BuildCompletedEvent) {
			if !e.Success {
				r.BuildFailed(e.Target, e.Error, e.Output)
				return
			}
			r.BuildSucceeded(e.Target, e.Duration)
			if verbose {
				r.BuildOutput(e.Output)
			}
		}),
		bus.Subscribe(func(e events.ProcessLaunchedEvent) {
			r.Info("app started (pid %d)", e.PID)
		}),
		bus.Subscribe(func(e events.LaunchFailedEvent) {
			r.Info("app failed to start: %s", e.Error)
		}),
		bus.Subscribe(func(e events.TerminationRequestedEvent) {
			if e.Reason == reasonRelaunching {
				r.Info("relaunching app (pid %d)", e.PID)
			}
		}),
		bus.Subscribe(func(e events.ProcessExitedEvent) {
			if e.Reason != reasonExternal {
				return
			}
			if e.Signal != "" {
				r.Info("app exited (%s); waiting for changes", e.Signal)
				return
			}
			r.Info("app exited with code %d; waiting for changes", e.Code)
		}),
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
