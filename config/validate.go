package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/samber/lo"
)

// stopSignals is the set of signals accepted for app.stop_signal.
//
//nolint:gochecknoglobals // package-level lookup table for signal validation
var stopSignals = map[string]os.Signal{
	"SIGTERM": syscall.SIGTERM,
	"SIGINT":  syscall.SIGINT,
	"SIGHUP":  syscall.SIGHUP,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGKILL": syscall.SIGKILL,
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("config warning: %s: %s", w.Field, w.Message)
}

// ValidationResults holds the results of configuration validation.
type ValidationResults struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are validation errors.
func (r ValidationResults) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (r ValidationResults) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// ErrorMessage returns a combined error message for all validation errors.
func (r ValidationResults) ErrorMessage() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// WriteWarnings writes all warnings to the given writer.
func (r ValidationResults) WriteWarnings(w io.Writer) {
	for _, warn := range r.Warnings {
		_, _ = fmt.Fprintln(w, warn.String())
	}
}

func (r *ValidationResults) errorf(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResults) warnf(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks settings that are wrong whatever the command. Missing
// commands are checked by ValidateSession.
func (c *Config) Validate() ValidationResults {
	var result ValidationResults

	durations := []struct {
		field string
		value int64
	}{
		{"resources.debounce", int64(c.Resources.Debounce)},
		{"build.debounce", int64(c.Build.Debounce)},
		{"app.graceful_timeout", int64(c.App.GracefulTimeout)},
	}
	for _, d := range durations {
		if d.value < 0 {
			result.errorf(d.field, "duration must not be negative")
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		result.errorf("server.port", "port %d is outside 1-65535", c.Server.Port)
	}

	if c.App.StopSignal != "" {
		if _, ok := stopSignals[strings.ToUpper(c.App.StopSignal)]; !ok {
			result.errorf("app.stop_signal", "unsupported signal %q, must be one of: %s", c.App.StopSignal, signalList())
		}
	}

	if c.Requires != "" {
		c.validateRequires(&result)
	}

	if c.Resources.Src != "" && c.Resources.Dst == "" {
		result.warnf("resources.dst", "resources.src is set without a destination; resource sync is disabled")
	}

	globs := map[string][]string{
		"main.watch":       c.Main.Watch,
		"main.ignore":      c.Main.Ignore,
		"renderer.watch":   c.Renderer.Watch,
		"renderer.ignore":  c.Renderer.Ignore,
		"preload.watch":    c.Preload.Watch,
		"preload.ignore":   c.Preload.Ignore,
		"resources.ignore": c.Resources.Ignore,
	}
	for _, field := range lo.Keys(globs) {
		for _, pattern := range globs[field] {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				result.warnf(field, "pattern %q will never match: %v", pattern, err)
			}
		}
	}
	sort.SliceStable(result.Warnings, func(i, j int) bool { return result.Warnings[i].Field < result.Warnings[j].Field })

	return result
}

func (c *Config) validateRequires(result *ValidationResults) {
	constraint, err := semver.NewConstraint(c.Requires)
	if err != nil {
		result.errorf("requires", "invalid version constraint %q: %v", c.Requires, err)
		return
	}
	if c.version == "" {
		return
	}

	current, err := semver.NewVersion(c.version)
	if err != nil {
		// Development builds carry no comparable version.
		return
	}
	if !constraint.Check(current) {
		result.errorf("requires", "kiln %s does not satisfy %q", current, c.Requires)
	}
}

// ValidateSession checks what a session needs: a renderer build always, and
// a main build plus an app command when withApp is set.
func (c *Config) ValidateSession(withApp bool) ValidationResults {
	var result ValidationResults

	if !c.Renderer.Enabled() {
		result.errorf("renderer.command", "no build command configured")
	}
	if withApp {
		if !c.Main.Enabled() {
			result.errorf("main.command", "no build command configured")
		}
		if len(c.App.Command) == 0 {
			result.errorf("app.command", "no application command configured")
		}
	}

	return result
}

// StopSignalValue returns the configured stop signal, defaulting to SIGTERM.
func (c *Config) StopSignalValue() os.Signal {
	if sig, ok := stopSignals[strings.ToUpper(c.App.StopSignal)]; ok {
		return sig
	}
	return syscall.SIGTERM
}

func signalList() string {
	names := lo.Keys(stopSignals)
	sort.Strings(names)
	return strings.Join(names, ", ")
}
