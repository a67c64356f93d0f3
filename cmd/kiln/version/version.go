// Package version reports the kiln build identity.
package version

import (
	"runtime/debug"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/yaklabco/kiln/pkg/ui"
)

// Version is the release version, set with
//
//	-ldflags "-X github.com/yaklabco/kiln/cmd/kiln/version.Version=v0.1.0"
//
// When left as "dev" the Go build info is consulted instead.
var Version = "dev" //nolint:gochecknoglobals // Populated by goreleaser ldflags.

// Commit is the git commit hash, set via -ldflags like Version.
var Commit = "" //nolint:gochecknoglobals // Populated by goreleaser ldflags.

// BuildDate is the RFC3339 build timestamp, set via -ldflags like Version.
var BuildDate = "" //nolint:gochecknoglobals // Populated by goreleaser ldflags.

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Built   time.Time
}

// Current resolves Info from ldflags, falling back to the Go build info.
func Current() Info {
	settings := map[string]string{}
	var moduleVersion string
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		moduleVersion = strings.TrimSpace(bi.Main.Version)
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
	}

	info := Info{
		Version: strings.TrimSpace(Version),
		Commit:  strings.TrimSpace(Commit),
	}

	if info.Version == "" || info.Version == "dev" {
		switch {
		case moduleVersion != "" && moduleVersion != "(devel)":
			info.Version = moduleVersion
		case settings["vcs.revision"] != "":
			info.Version = settings["vcs.revision"]
			if settings["vcs.modified"] == "true" {
				info.Version += "-dirty"
			}
		default:
			info.Version = "dev"
		}
	}
	if info.Commit == "" {
		info.Commit = settings["vcs.revision"]
	}

	for _, raw := range []string{BuildDate, settings["vcs.time"]} {
		if built, ok := parseTime(raw); ok {
			info.Built = built
			break
		}
	}

	return info
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// String joins the non-empty parts with "-".
func (i Info) String() string {
	return strings.Join(i.parts(nil, nil, nil), "-")
}

// Colorized renders the version line in the fang help palette.
func (i Info) Colorized() string {
	cs := ui.GetFangScheme()
	versionStyle := lipgloss.NewStyle().Foreground(cs.QuotedString)
	commitStyle := lipgloss.NewStyle().Foreground(cs.Program)
	timeStyle := lipgloss.NewStyle().Foreground(cs.Flag)
	sepStyle := lipgloss.NewStyle().Foreground(cs.Base)

	return strings.Join(
		i.parts(versionStyle.Render, commitStyle.Render, timeStyle.Render),
		sepStyle.Render("-"),
	)
}

func (i Info) parts(version, commit, built func(...string) string) []string {
	plain := func(s ...string) string { return strings.Join(s, "") }
	if version == nil {
		version = plain
	}
	if commit == nil {
		commit = plain
	}
	if built == nil {
		built = plain
	}

	parts := []string{version(i.Version)}
	if i.Commit != "" && i.Commit != i.Version {
		parts = append(parts, commit(i.Commit))
	}
	if !i.Built.IsZero() {
		parts = append(parts, built(i.Built.In(time.Local).Format(time.RFC3339)))
	}
	return parts
}
