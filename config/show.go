package config

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// WriteEffective prints the resolved configuration as YAML.
func (c *Config) WriteEffective(w io.Writer) {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	p("# Effective kiln configuration\n")
	if c.ConfigFile() != "" {
		p("# Loaded from: %s\n", c.ConfigFile())
	} else {
		p("# (using defaults, no config file found)\n")
	}
	p("\n")

	for _, named := range []struct {
		name   string
		target TargetConfig
	}{{"main", c.Main}, {"renderer", c.Renderer}, {"preload", c.Preload}} {
		p("%s:\n", named.name)
		p("  command: %s\n", list(named.target.Command))
		p("  dir: %s\n", named.target.Dir)
		p("  watch: %s\n", list(named.target.Watch))
		p("  ignore: %s\n", list(named.target.Ignore))
		writeEnv(w, named.target.Env)
	}

	p("resources:\n")
	p("  src: %s\n", c.Resources.Src)
	p("  dst: %s\n", c.Resources.Dst)
	p("  ignore: %s\n", list(c.Resources.Ignore))
	p("  debounce: %s\n", c.Resources.Debounce)

	p("app:\n")
	p("  command: %s\n", list(c.App.Command))
	p("  dir: %s\n", c.App.Dir)
	writeEnv(w, c.App.Env)
	p("  stop_signal: %s\n", c.App.StopSignal)
	p("  graceful_timeout: %s\n", c.App.GracefulTimeout)

	p("server:\n")
	p("  host: %s\n", c.Server.Host)
	p("  port: %d\n", c.Server.Port)
	p("  static_dir: %s\n", c.Server.StaticDir)

	p("build:\n")
	p("  debounce: %s\n", c.Build.Debounce)

	p("requires: %s\n", strconv.Quote(c.Requires))
	p("verbose: %v\n", c.Verbose)
	p("debug: %v\n", c.Debug)
}

func list(items []string) string {
	return "[" + strings.Join(lo.Map(items, func(s string, _ int) string { return strconv.Quote(s) }), ", ") + "]"
}

func writeEnv(w io.Writer, envMap map[string]string) {
	if len(envMap) == 0 {
		return
	}
	keys := lo.Keys(envMap)
	sort.Strings(keys)
	_, _ = fmt.Fprintln(w, "  env:")
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "    %s: %s\n", k, strconv.Quote(envMap[k]))
	}
}
