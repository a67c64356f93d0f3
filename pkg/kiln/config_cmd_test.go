package kiln

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfigCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	t.Run("init then show", func(t *testing.T) {
		dir := t.TempDir()
		var stdout bytes.Buffer

		require.NoError(t, RunConfigCommand(RunParams{Dir: dir, Stdout: &stdout}, ConfigInit))
		assert.Contains(t, stdout.String(), "Created config file:")
		assert.FileExists(t, filepath.Join(dir, "kiln.yaml"))

		err := RunConfigCommand(RunParams{Dir: dir, Stdout: &bytes.Buffer{}}, ConfigInit)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")

		stdout.Reset()
		require.NoError(t, RunConfigCommand(RunParams{Dir: dir, Stdout: &stdout, Stderr: &bytes.Buffer{}}, ConfigShow))
		assert.Contains(t, stdout.String(), "# Effective kiln configuration")
		assert.Contains(t, stdout.String(), "# Loaded from: "+filepath.Join(dir, "kiln.yaml"))
	})

	t.Run("show defaults", func(t *testing.T) {
		var stdout bytes.Buffer
		require.NoError(t, RunConfigCommand(RunParams{Dir: t.TempDir(), Stdout: &stdout, Stderr: &bytes.Buffer{}}, ""))
		assert.Contains(t, stdout.String(), "(using defaults, no config file found)")
	})

	t.Run("path", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte("verbose: true\n"), 0o600))

		var stdout bytes.Buffer
		require.NoError(t, RunConfigCommand(RunParams{Dir: dir, Stdout: &stdout, Stderr: &bytes.Buffer{}}, ConfigPath))
		assert.Contains(t, stdout.String(), "User config:")
		assert.Contains(t, stdout.String(), "Active config file: "+filepath.Join(dir, "kiln.yaml"))
	})

	t.Run("unknown", func(t *testing.T) {
		err := RunConfigCommand(RunParams{Stdout: &bytes.Buffer{}}, "bogus")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown config subcommand "bogus"`)
	})
}
