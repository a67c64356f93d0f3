// Package prettylog installs a charmbracelet/log handler as the slog default.
package prettylog

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// Options selects how chatty the default logger is.
type Options struct {
	Debug   bool // debug level, with caller reporting
	Verbose bool // info level; warn otherwise
}

// SetupPrettyLogger builds a charmbracelet/log logger writing to writerForLogger,
// installs it as the slog default, and returns it.
func SetupPrettyLogger(writerForLogger io.Writer, opts Options) *log.Logger {
	level := log.WarnLevel
	switch {
	case opts.Debug:
		level = log.DebugLevel
	case opts.Verbose:
		level = log.InfoLevel
	}

	logHandler := log.NewWithOptions(
		writerForLogger,
		log.Options{
			Level:           level,
			ReportTimestamp: true,
			ReportCaller:    opts.Debug,
			Prefix:          "kiln",
		},
	)
	slog.SetDefault(slog.New(logHandler))

	return logHandler
}
