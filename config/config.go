package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"github.com/yaklabco/kiln/pkg/env"
)

// TargetConfig describes one compiled unit.
type TargetConfig struct {
	// Command builds the unit once. A single string is split on whitespace.
	Command []string `mapstructure:"command"`

	// Dir is the working directory of Command and the root of Watch.
	Dir string `mapstructure:"dir"`

	// Watch lists the source globs that trigger a rebuild.
	Watch []string `mapstructure:"watch"`

	// Ignore lists globs excluded from Watch.
	Ignore []string `mapstructure:"ignore"`

	// Env is added to the build environment. Keys are upper-cased.
	Env map[string]string `mapstructure:"env"`
}

// Enabled reports whether the unit has a build command.
func (t TargetConfig) Enabled() bool {
	return len(t.Command) > 0
}

// ResourcesConfig describes the side-loaded resource tree.
type ResourcesConfig struct {
	Src      string        `mapstructure:"src"`
	Dst      string        `mapstructure:"dst"`
	Ignore   []string      `mapstructure:"ignore"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Enabled reports whether resource syncing is configured.
func (r ResourcesConfig) Enabled() bool {
	return r.Src != "" && r.Dst != ""
}

// AppConfig describes the supervised application.
type AppConfig struct {
	Command         []string          `mapstructure:"command"`
	Dir             string            `mapstructure:"dir"`
	Env             map[string]string `mapstructure:"env"`
	StopSignal      string            `mapstructure:"stop_signal"`
	GracefulTimeout time.Duration     `mapstructure:"graceful_timeout"`
}

// ServerConfig describes the development HTTP server.
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// URL returns the base URL of the server.
func (s ServerConfig) URL() string {
	return "http://" + s.Addr()
}

// BuildConfig holds settings shared by the build watchers.
type BuildConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Config holds all kiln configuration values.
type Config struct {
	Main      TargetConfig    `mapstructure:"main"`
	Renderer  TargetConfig    `mapstructure:"renderer"`
	Preload   TargetConfig    `mapstructure:"preload"`
	Resources ResourcesConfig `mapstructure:"resources"`
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Build     BuildConfig     `mapstructure:"build"`

	// Requires is an optional semver constraint on the kiln version.
	Requires string `mapstructure:"requires"`

	// Verbose echoes build commands and prints successful build output.
	Verbose bool `mapstructure:"verbose"`

	// Debug enables debug messages.
	Debug bool `mapstructure:"debug"`

	configFile string
	projectDir string
	version    string
}

// ConfigFile returns the path of the highest-precedence configuration file
// that was loaded, or an empty string if none was.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// ProjectDir returns the absolute project directory paths were resolved
// against.
func (c *Config) ProjectDir() string {
	return c.projectDir
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ProjectDir is the directory to search for project-level config.
	// If empty, the current working directory is used.
	ProjectDir string

	// ConfigFile replaces ProjectDir/kiln.yaml. It must exist.
	ConfigFile string

	// Version is the running kiln version checked against Requires.
	// Empty skips the check.
	Version string

	// Stderr is where warnings are written.
	// If nil, os.Stderr is used.
	Stderr io.Writer

	SkipProjectConfig bool
	SkipUserConfig    bool
	SkipEnv           bool
}

// Load reads configuration from all sources and returns a Config struct.
// Configuration is loaded in the following order (later sources override earlier):
//  1. Defaults
//  2. User config file (~/.config/kiln/config.yaml)
//  3. Project config file (./kiln.yaml)
//  4. Environment variables (KILN_*)
//
// If opts is nil, default options are used.
func Load(opts *LoadOptions) (*Config, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	viperInstance := viper.New()
	setDefaults(viperInstance)
	viperInstance.SetConfigType("yaml")

	var configFileUsed string

	if !opts.SkipUserConfig {
		paths := ResolveXDGPaths()
		viperInstance.SetConfigName(ConfigFileName)
		viperInstance.AddConfigPath(paths.ConfigDir())

		if err := viperInstance.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, fmt.Errorf("failed to read user config file: %w", err)
			}
		} else {
			configFileUsed = viperInstance.ConfigFileUsed()
		}
	}

	if !opts.SkipProjectConfig {
		projectConfigPath := ProjectConfigPath(projectDir)
		explicit := opts.ConfigFile != ""
		if explicit {
			projectConfigPath = opts.ConfigFile
		}

		if _, err := os.Stat(projectConfigPath); err == nil {
			viperInstance.SetConfigFile(projectConfigPath)
			if err := viperInstance.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read project config file: %w", err)
			}
			configFileUsed = projectConfigPath
		} else if explicit {
			return nil, fmt.Errorf("config file %s: %w", projectConfigPath, err)
		}
	}

	var cfg Config
	if err := viperInstance.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if !opts.SkipEnv {
		if err := applyEnvironmentOverrides(&cfg); err != nil {
			return nil, err
		}
	}

	cfg.configFile = configFileUsed
	cfg.version = opts.Version
	cfg.normalize(projectDir)

	result := cfg.Validate()
	if result.HasWarnings() {
		result.WriteWarnings(opts.Stderr)
	}
	if result.HasErrors() {
		return nil, errors.New(result.ErrorMessage())
	}

	return &cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// Environment variables take precedence over config files.
func applyEnvironmentOverrides(cfg *Config) error {
	cfg.Verbose = env.FailsafeParseBoolEnv("KILN_VERBOSE", cfg.Verbose)
	cfg.Debug = env.FailsafeParseBoolEnv("KILN_DEBUG", cfg.Debug)

	if v := os.Getenv("KILN_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KILN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KILN_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("KILN_STATIC_DIR"); v != "" {
		cfg.Server.StaticDir = v
	}
	if v := os.Getenv("KILN_APP_COMMAND"); v != "" {
		cfg.App.Command = strings.Fields(v)
	}
	if v := os.Getenv("KILN_RESOURCES_SRC"); v != "" {
		cfg.Resources.Src = v
	}
	if v := os.Getenv("KILN_RESOURCES_DST"); v != "" {
		cfg.Resources.Dst = v
	}

	durations := map[string]*time.Duration{
		"KILN_RESOURCES_DEBOUNCE": &cfg.Resources.Debounce,
		"KILN_BUILD_DEBOUNCE":     &cfg.Build.Debounce,
		"KILN_GRACEFUL_TIMEOUT":   &cfg.App.GracefulTimeout,
	}
	for name, dst := range durations {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}

	return nil
}

// normalize splits single-string commands, upper-cases env keys (viper
// lower-cases every map key) and resolves relative paths against projectDir.
func (c *Config) normalize(projectDir string) {
	c.projectDir = projectDir

	resolve := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(projectDir, path)
	}
	split := func(cmd []string) []string {
		if len(cmd) == 1 && strings.ContainsAny(cmd[0], " \t") {
			return strings.Fields(cmd[0])
		}
		return cmd
	}

	upper := func(envMap map[string]string) map[string]string {
		return lo.MapKeys(envMap, func(_ string, k string) string { return strings.ToUpper(k) })
	}

	for _, target := range []*TargetConfig{&c.Main, &c.Renderer, &c.Preload} {
		target.Command = split(target.Command)
		target.Env = upper(target.Env)
		target.Dir = resolve(target.Dir)
		if target.Dir == "" {
			target.Dir = projectDir
		}
	}

	c.App.Command = split(c.App.Command)
	c.App.Env = upper(c.App.Env)
	c.App.Dir = resolve(c.App.Dir)
	if c.App.Dir == "" {
		c.App.Dir = projectDir
	}

	c.Resources.Src = resolve(c.Resources.Src)
	c.Resources.Dst = resolve(c.Resources.Dst)
	c.Server.StaticDir = resolve(c.Server.StaticDir)
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Main:     TargetConfig{Watch: []string{"src/main/**/*"}, Ignore: defaultTargetIgnore()},
		Renderer: TargetConfig{Watch: []string{"src/renderer/**/*"}, Ignore: defaultTargetIgnore()},
		Preload:  TargetConfig{Watch: []string{"src/preload/**/*"}, Ignore: defaultTargetIgnore()},
		Resources: ResourcesConfig{
			Debounce: DefaultResourceDebounce,
		},
		App: AppConfig{
			StopSignal:      DefaultStopSignal,
			GracefulTimeout: DefaultGracefulTimeout,
		},
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Build:  BuildConfig{Debounce: DefaultBuildDebounce},
	}
}

// WriteProjectConfig writes a starter kiln.yaml into dir.
func WriteProjectConfig(dir string) (string, error) {
	configPath := ProjectConfigPath(dir)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigYAML()), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

// defaultConfigYAML returns the starter project configuration as YAML.
func defaultConfigYAML() string {
	return `# kiln project configuration

# Each unit is rebuilt by its command whenever a watched file changes.
main:
  command: ["npx", "esbuild", "src/main/index.ts", "--bundle", "--platform=node", "--outfile=out/main/index.js"]
  watch: ["src/main/**/*"]

renderer:
  command: ["npx", "esbuild", "src/renderer/index.tsx", "--bundle", "--outdir=out/renderer"]
  watch: ["src/renderer/**/*"]

# Optional. Leave the command empty to disable.
preload:
  command: []
  watch: ["src/preload/**/*"]

# Mirrored into dst on every change; the app relaunches once changes settle.
resources:
  src: resources
  dst: out/resources
  debounce: 300ms

app:
  command: ["npx", "electron", "."]
  stop_signal: SIGTERM
  graceful_timeout: 5s

server:
  host: localhost
  port: 5173
  static_dir: out/renderer

build:
  debounce: 100ms

# requires: ">= 0.1.0"
verbose: false
debug: false
`
}
