package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultHost             = "localhost"
	DefaultPort             = 5173
	DefaultStopSignal       = "SIGTERM"
	DefaultGracefulTimeout  = 5 * time.Second
	DefaultResourceDebounce = 300 * time.Millisecond
	DefaultBuildDebounce    = 100 * time.Millisecond
	DefaultVerbose          = false
	DefaultDebug            = false
)

// defaultTargetIgnore is applied to every build watcher.
func defaultTargetIgnore() []string {
	return []string{"node_modules", ".git"}
}

// setDefaults configures default values in the viper instance.
func setDefaults(viperInstance *viper.Viper) {
	viperInstance.SetDefault("main.watch", []string{"src/main/**/*"})
	viperInstance.SetDefault("main.ignore", defaultTargetIgnore())
	viperInstance.SetDefault("renderer.watch", []string{"src/renderer/**/*"})
	viperInstance.SetDefault("renderer.ignore", defaultTargetIgnore())
	viperInstance.SetDefault("preload.watch", []string{"src/preload/**/*"})
	viperInstance.SetDefault("preload.ignore", defaultTargetIgnore())

	viperInstance.SetDefault("resources.src", "")
	viperInstance.SetDefault("resources.dst", "")
	viperInstance.SetDefault("resources.debounce", DefaultResourceDebounce)

	viperInstance.SetDefault("app.stop_signal", DefaultStopSignal)
	viperInstance.SetDefault("app.graceful_timeout", DefaultGracefulTimeout)

	viperInstance.SetDefault("server.host", DefaultHost)
	viperInstance.SetDefault("server.port", DefaultPort)
	viperInstance.SetDefault("server.static_dir", "")

	viperInstance.SetDefault("build.debounce", DefaultBuildDebounce)

	viperInstance.SetDefault("requires", "")
	viperInstance.SetDefault("verbose", DefaultVerbose)
	viperInstance.SetDefault("debug", DefaultDebug)
}
