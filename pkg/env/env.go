// Package env builds child-process environments and reads the boolean
// switches kiln takes from the environment.
package env

import (
	"maps"
	"os"
	"strings"

	"github.com/samber/lo"
)

// Overlay returns the current process environment with each of the given maps
// applied on top, in order. Later maps win.
func Overlay(overlays ...map[string]string) []string {
	merged := lo.FromPairs(lo.FilterMap(os.Environ(), func(kv string, _ int) (lo.Entry[string, string], bool) {
		key, value, ok := strings.Cut(kv, "=")
		return lo.Entry[string, string]{Key: key, Value: value}, ok
	}))
	for _, o := range overlays {
		maps.Copy(merged, o)
	}

	return lo.MapToSlice(merged, func(k, v string) string { return k + "=" + v })
}

// parseBool accepts true/yes/1 and false/no/0 in any case, surrounding
// whitespace ignored.
func parseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}

// FailsafeParseBoolEnv returns the boolean value of envVar, or defaultValue
// when it is unset, empty or not a boolean.
func FailsafeParseBoolEnv(envVar string, defaultValue bool) bool {
	b, ok := parseBool(os.Getenv(envVar))
	if !ok {
		return defaultValue
	}
	return b
}

// ciFlags hold a boolean; ciMarkers signal CI by being non-empty.
var (
	ciFlags   = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "BUILDKITE"} //nolint:gochecknoglobals // lookup table
	ciMarkers = []string{"JENKINS_URL"}                                                 //nolint:gochecknoglobals // lookup table
)

// InCI reports whether the process appears to run under CI.
func InCI() bool {
	return lo.SomeBy(ciFlags, func(v string) bool { return FailsafeParseBoolEnv(v, false) }) ||
		lo.SomeBy(ciMarkers, func(v string) bool { return os.Getenv(v) != "" })
}
