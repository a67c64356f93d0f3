// Package kiln assembles a development session from configuration: build
// watchers, resource sync, the relaunch coordinator and the dev server.
package kiln

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/yaklabco/kiln/config"
	klog "github.com/yaklabco/kiln/internal/log"
	"github.com/yaklabco/kiln/pkg/build"
	"github.com/yaklabco/kiln/pkg/devserver"
	"github.com/yaklabco/kiln/pkg/events"
	"github.com/yaklabco/kiln/pkg/fatal"
	"github.com/yaklabco/kiln/pkg/metrics"
	"github.com/yaklabco/kiln/pkg/prettylog"
	"github.com/yaklabco/kiln/pkg/relaunch"
	"github.com/yaklabco/kiln/pkg/ressync"
	"github.com/yaklabco/kiln/pkg/supervisor"
	"github.com/yaklabco/kiln/pkg/ui"
	"github.com/yaklabco/kiln/pkg/watch/readiness"
	"github.com/yaklabco/kiln/pkg/watch/wtarget"
	"golang.org/x/sync/errgroup"
)

// DevServerURLEnv carries the dev server URL into the application.
const DevServerURLEnv = "KILN_DEV_SERVER_URL"

// shutdownMargin is added to the graceful timeout while waiting for the
// application to exit on shutdown.
const shutdownMargin = 2 * time.Second

// exitConfig is the exit status for unusable configuration.
const exitConfig = 2

// Mode selects which parts of a session run.
type Mode int

const (
	ModeDev   Mode = iota // builds, resources, app and dev server
	ModeWatch             // builds, resources and app
	ModeServe             // renderer build and dev server
)

func (m Mode) String() string {
	switch m {
	case ModeDev:
		return "dev"
	case ModeWatch:
		return "watch"
	case ModeServe:
		return "serve"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) withApp() bool    { return m != ModeServe }
func (m Mode) withServer() bool { return m != ModeWatch }

// RunParams holds everything a session needs besides the configuration file.
type RunParams struct {
	BaseCtx context.Context // BaseCtx is the base context for the run, often used for cancellation.

	Stdout          io.Writer // writer for build reports
	Stderr          io.Writer // writer for config warnings
	WriterForLogger io.Writer // writer for structured logs

	Mode       Mode
	Debug      bool   // turn on debug messages
	Verbose    bool   // echo commands and print successful build output
	Dir        string // project directory
	ConfigFile string // explicit project config file
	Host       string // overrides server.host when set
	Port       int    // overrides server.port when non-zero
	Version    string // running kiln version, checked against requires

	// Launcher replaces the OS process launcher.
	Launcher supervisor.Launcher
}

func preprocessRunParams(params *RunParams) {
	if params.BaseCtx == nil {
		params.BaseCtx = context.Background()
	}
	if params.Stdout == nil {
		params.Stdout = os.Stdout
	}
	if params.Stderr == nil {
		params.Stderr = os.Stderr
	}
	if params.WriterForLogger == nil {
		params.WriterForLogger = params.Stderr
	}
}

// Run loads configuration and runs a session until the base context is done
// or SIGINT/SIGTERM arrives.
func Run(params RunParams) error {
	preprocessRunParams(&params)

	cfg, err := LoadConfig(params)
	if err != nil {
		return err
	}

	prettylog.SetupPrettyLogger(params.WriterForLogger, prettylog.Options{
		Debug:   cfg.Debug,
		Verbose: cfg.Verbose,
	})

	if result := cfg.ValidateSession(params.Mode.withApp()); result.HasErrors() {
		return fatal.Error(exitConfig, result.ErrorMessage())
	}

	ctx, stop := signal.NotifyContext(params.BaseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newSession(cfg, params).run(ctx)
}

// LoadConfig reads the configuration for params and applies command-line
// overrides.
func LoadConfig(params RunParams) (*config.Config, error) {
	cfg, err := config.Load(&config.LoadOptions{
		ProjectDir: params.Dir,
		ConfigFile: params.ConfigFile,
		Version:    params.Version,
		Stderr:     params.Stderr,
	})
	if err != nil {
		return nil, fatal.Errorf(exitConfig, "loading configuration: %w", err)
	}

	cfg.Debug = cfg.Debug || params.Debug
	cfg.Verbose = cfg.Verbose || params.Verbose
	cfg.Server.Host = lo.CoalesceOrEmpty(params.Host, cfg.Server.Host)
	if params.Port != 0 {
		if params.Port < 1 || params.Port > 65535 {
			return nil, fatal.Errorf(exitConfig, "port %d is out of range 1-65535", params.Port)
		}
		cfg.Server.Port = params.Port
	}

	return cfg, nil
}

type session struct {
	cfg    *config.Config
	params RunParams

	bus      *events.Bus
	recorder *metrics.Recorder
	reporter *ui.Reporter
}

func newSession(cfg *config.Config, params RunParams) *session {
	return &session{
		cfg:      cfg,
		params:   params,
		bus:      events.New(),
		recorder: metrics.New(),
		reporter: ui.NewReporter(params.Stdout),
	}
}

func (s *session) run(ctx context.Context) error {
	s.recorder.Subscribe(s.bus)
	defer s.recorder.Close()
	defer s.reporter.Subscribe(s.bus, s.cfg.Verbose)()

	slog.Info("starting session",
		slog.String(klog.Op, s.params.Mode.String()),
		slog.String(klog.Dir, s.cfg.ProjectDir()),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	var controller devserver.Controller
	if s.params.Mode.withApp() {
		coord := s.coordinator()
		controller = coord
		group.Go(func() error { return coord.Run(groupCtx) })

		for _, w := range s.watchers(wtarget.All...) {
			group.Go(func() error { return w.Run(groupCtx, coord.BuildFinished) })
		}
		if s.cfg.Resources.Enabled() {
			syncer := &ressync.Syncer{
				Src:       s.cfg.Resources.Src,
				Dst:       s.cfg.Resources.Dst,
				Ignore:    s.cfg.Resources.Ignore,
				Debounce:  s.cfg.Resources.Debounce,
				OnSettled: coord.ResourcesSettled,
			}
			group.Go(func() error { return syncer.Run(groupCtx) })
		}
	} else {
		for _, w := range s.watchers(wtarget.Renderer) {
			group.Go(func() error { return w.Run(groupCtx, s.publishBuild) })
		}
	}

	if s.params.Mode.withServer() {
		server := devserver.New(devserver.Options{
			Addr:       s.cfg.Server.Addr(),
			StaticDir:  s.cfg.Server.StaticDir,
			Version:    s.params.Version,
			Controller: controller,
			Metrics:    s.recorder.Handler(),
		})
		group.Go(func() error { return server.Run(groupCtx) })
	}

	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// coordinator wires the readiness gate and supervisor for the enabled
// targets.
func (s *session) coordinator() *relaunch.Coordinator {
	gate := readiness.New(lo.Filter(wtarget.All, func(id wtarget.ID, _ int) bool {
		return s.target(id).Enabled()
	})...)

	appEnv := lo.Assign(map[string]string{}, s.cfg.App.Env)
	if s.params.Mode.withServer() {
		appEnv[DevServerURLEnv] = s.cfg.Server.URL()
	}

	sup := supervisor.New(supervisor.Options{
		Command: supervisor.Command{
			Args: s.cfg.App.Command,
			Dir:  s.cfg.App.Dir,
			Env:  appEnv,
		},
		Launcher:        s.params.Launcher,
		StopSignal:      s.cfg.StopSignalValue(),
		GracefulTimeout: s.cfg.App.GracefulTimeout,
	})

	return relaunch.New(relaunch.Options{
		Gate:            gate,
		Supervisor:      sup,
		Bus:             s.bus,
		ShutdownTimeout: sup.GracefulTimeout() + shutdownMargin,
	})
}

// watchers returns a build watcher for each enabled target in ids.
func (s *session) watchers(ids ...wtarget.ID) []*build.Watcher {
	enabled := lo.Filter(ids, func(id wtarget.ID, _ int) bool { return s.target(id).Enabled() })

	return lo.Map(enabled, func(id wtarget.ID, _ int) *build.Watcher {
		target := s.target(id)
		return &build.Watcher{
			Target:   id,
			Command:  target.Command,
			Dir:      target.Dir,
			Env:      target.Env,
			Watch:    target.Watch,
			Ignore:   target.Ignore,
			Debounce: s.cfg.Build.Debounce,
			Verbose:  s.cfg.Verbose,
		}
	})
}

func (s *session) target(id wtarget.ID) config.TargetConfig {
	switch id {
	case wtarget.Main:
		return s.cfg.Main
	case wtarget.Renderer:
		return s.cfg.Renderer
	case wtarget.Preload:
		return s.cfg.Preload
	default:
		return config.TargetConfig{}
	}
}

// publishBuild reports builds when no coordinator is running.
func (s *session) publishBuild(err error, res build.Result) {
	s.bus.Publish(events.BuildCompleted(res.Target.String(), err, res.Duration, res.Output))
}
