package kiln

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/yaklabco/kiln/cmd/kiln/version"
	"github.com/yaklabco/kiln/pkg/env"
	"github.com/yaklabco/kiln/pkg/kiln"
)

const (
	shortDescription = "kiln rebuilds a desktop-shell app on change and relaunches it once every part has built."
)

type rootCmdOptions struct {
	runFunc    func(params kiln.RunParams) error
	configFunc func(params kiln.RunParams, sub kiln.ConfigSubcommand) error
}

type Option func(*rootCmdOptions)

// This is intentionally designed to be unusable from outside this package,
// as it exists purely for testing purposes.
func withRunFunc(fn func(params kiln.RunParams) error) Option {
	return func(opts *rootCmdOptions) {
		opts.runFunc = fn
	}
}

func withConfigFunc(fn func(params kiln.RunParams, sub kiln.ConfigSubcommand) error) Option {
	return func(opts *rootCmdOptions) {
		opts.configFunc = fn
	}
}

func NewRootCmd(ctx context.Context, opts ...Option) *cobra.Command {
	rootCmdOpts := &rootCmdOptions{
		runFunc:    kiln.Run,
		configFunc: kiln.RunConfigCommand,
	}
	for _, opt := range opts {
		opt(rootCmdOpts)
	}

	info := version.Current()

	var runParams kiln.RunParams
	rootCmd := &cobra.Command{
		Use:   "kiln",
		Short: shortDescription,
		Example: `	# Build, relaunch on change and serve the renderer
	kiln dev

	# Same, without the dev server
	kiln watch

	# Serve the renderer only
	kiln serve --port 3000

	# Manage configuration
	kiln config show`,
		Version:       info.Colorized(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&runParams.Debug, "debug", "d", env.FailsafeParseBoolEnv("KILN_DEBUG", false), "turn on debug messages")
	rootCmd.PersistentFlags().BoolVarP(&runParams.Verbose, "verbose", "v", env.FailsafeParseBoolEnv("KILN_VERBOSE", false), "echo build commands and show build output")
	rootCmd.PersistentFlags().StringVarP(&runParams.Dir, "dir", "C", "", "project directory")
	rootCmd.PersistentFlags().StringVar(&runParams.ConfigFile, "config", "", "project config file (default <dir>/kiln.yaml)")

	session := func(mode kiln.Mode) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			runParams.Mode = mode
			runParams.Version = info.Version
			runParams.Stdout = cmd.OutOrStdout()
			runParams.Stderr = cmd.ErrOrStderr()
			runParams.WriterForLogger = os.Stderr
			runParams.BaseCtx = cmd.Context() //nolint:fatcontext // intentionally setting context from cmd

			return rootCmdOpts.runFunc(runParams)
		}
	}
	serverFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&runParams.Host, "host", "", "dev server host (default from config)")
		cmd.Flags().IntVar(&runParams.Port, "port", 0, "dev server port (default from config)")
	}

	devCmd := &cobra.Command{
		Use:   "dev",
		Short: "Build every target, relaunch the app on change, and run the dev server",
		Args:  cobra.NoArgs,
		RunE:  session(kiln.ModeDev),
	}
	serverFlags(devCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Build every target and relaunch the app on change",
		Args:  cobra.NoArgs,
		RunE:  session(kiln.ModeWatch),
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the renderer on change and serve it",
		Args:  cobra.NoArgs,
		RunE:  session(kiln.ModeServe),
	}
	serverFlags(serveCmd)

	configCmd := &cobra.Command{
		Use:       "config [show|init|path]",
		Short:     "Manage kiln configuration",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(kiln.ConfigShow), string(kiln.ConfigInit), string(kiln.ConfigPath)},
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := kiln.ConfigShow
			if len(args) == 1 {
				sub = kiln.ConfigSubcommand(args[0])
			}
			runParams.Version = info.Version
			runParams.Stdout = cmd.OutOrStdout()
			runParams.Stderr = cmd.ErrOrStderr()

			return rootCmdOpts.configFunc(runParams, sub)
		},
	}

	rootCmd.AddCommand(devCmd, watchCmd, serveCmd, configCmd)

	return rootCmd
}

// ExecuteWithFang runs the root Cobra command with Fang-specific options.
func ExecuteWithFang(ctx context.Context, rootCmd *cobra.Command) error {
	//nolint:wrapcheck // top-level error from cobra, wrapping not needed
	return fang.Execute(
		ctx, rootCmd, fang.WithVersion(rootCmd.Version), fang.WithoutManpage())
}
