package kiln

import (
	"fmt"

	"github.com/yaklabco/kiln/config"
)

// ConfigSubcommand represents a config subcommand.
type ConfigSubcommand string

// Config subcommand constants.
const (
	ConfigInit ConfigSubcommand = "init"
	ConfigShow ConfigSubcommand = "show"
	ConfigPath ConfigSubcommand = "path"
)

// RunConfigCommand handles `kiln config <sub>`.
func RunConfigCommand(params RunParams, sub ConfigSubcommand) error {
	preprocessRunParams(&params)

	switch sub {
	case ConfigInit:
		return runConfigInit(params)
	case ConfigShow, "":
		return runConfigShow(params)
	case ConfigPath:
		return runConfigPath(params)
	default:
		return fmt.Errorf("unknown config subcommand %q", sub)
	}
}

// runConfigInit writes a starter kiln.yaml into the project directory.
func runConfigInit(params RunParams) error {
	dir := params.Dir
	if dir == "" {
		dir = "."
	}
	path, err := config.WriteProjectConfig(dir)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(params.Stdout, "Created config file: %s\n", path)
	return nil
}

// runConfigShow displays the effective configuration.
func runConfigShow(params RunParams) error {
	cfg, err := LoadConfig(params)
	if err != nil {
		return err
	}
	cfg.WriteEffective(params.Stdout)
	return nil
}

// runConfigPath displays the configuration file paths.
func runConfigPath(params RunParams) error {
	paths := config.ResolveXDGPaths()
	out := params.Stdout

	_, _ = fmt.Fprintln(out, "Configuration Paths:")
	_, _ = fmt.Fprintf(out, "  User config:    %s\n", paths.ConfigFilePath())
	_, _ = fmt.Fprintf(out, "  Config dir:     %s\n", paths.ConfigDir())

	cfg, err := LoadConfig(params)
	if err == nil {
		_, _ = fmt.Fprintf(out, "  Project config: %s\n", config.ProjectConfigPath(cfg.ProjectDir()))
	}
	if err == nil && cfg.ConfigFile() != "" {
		_, _ = fmt.Fprintf(out, "\nActive config file: %s\n", cfg.ConfigFile())
	} else {
		_, _ = fmt.Fprintln(out, "\nNo config file currently loaded (using defaults)")
	}

	return nil
}
