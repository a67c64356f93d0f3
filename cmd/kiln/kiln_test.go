package kiln

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/kiln/pkg/kiln"
)

func TestVerboseEnv(t *testing.T) {
	ctx := t.Context()
	t.Setenv("KILN_VERBOSE", "true")
	runFunc := func(params kiln.RunParams) error {
		assert.True(t, params.Verbose)
		return nil
	}
	rootCmd := NewRootCmd(ctx, withRunFunc(runFunc))
	rootCmd.SetArgs([]string{"watch"})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
}

func TestVerboseFalseEnv(t *testing.T) {
	ctx := t.Context()
	t.Setenv("KILN_VERBOSE", "0")
	runFunc := func(params kiln.RunParams) error {
		assert.False(t, params.Verbose)
		return nil
	}
	rootCmd := NewRootCmd(ctx, withRunFunc(runFunc))
	rootCmd.SetArgs([]string{"watch"})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
}

func TestParse(t *testing.T) {
	ctx := t.Context()
	called := false
	runFunc := func(params kiln.RunParams) error {
		called = true
		assert.Equal(t, kiln.ModeDev, params.Mode)
		assert.True(t, params.Debug)
		assert.True(t, params.Verbose)
		assert.Equal(t, "dir", params.Dir)
		assert.Equal(t, "custom.yaml", params.ConfigFile)
		assert.Equal(t, "0.0.0.0", params.Host)
		assert.Equal(t, 3000, params.Port)
		assert.NotNil(t, params.BaseCtx)
		return nil
	}
	rootCmd := NewRootCmd(ctx, withRunFunc(runFunc))
	rootCmd.SetArgs([]string{"-v", "--debug", "-C", "dir", "--config", "custom.yaml", "dev", "--host", "0.0.0.0", "--port", "3000"})
	require.NoError(t, ExecuteWithFang(ctx, rootCmd))
	assert.True(t, called)
}

func TestModes(t *testing.T) {
	for name, want := range map[string]kiln.Mode{
		"dev":   kiln.ModeDev,
		"watch": kiln.ModeWatch,
		"serve": kiln.ModeServe,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			var got kiln.Mode = -1
			rootCmd := NewRootCmd(ctx, withRunFunc(func(params kiln.RunParams) error {
				got = params.Mode
				return nil
			}))
			rootCmd.SetArgs([]string{name})
			require.NoError(t, ExecuteWithFang(ctx, rootCmd))
			assert.Equal(t, want, got)
		})
	}
}

func TestWatchHasNoServerFlags(t *testing.T) {
	ctx := t.Context()
	rootCmd := NewRootCmd(ctx, withRunFunc(func(kiln.RunParams) error { return nil }))
	rootCmd.SetArgs([]string{"watch", "--port", "3000"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	require.Error(t, ExecuteWithFang(ctx, rootCmd))
}

func TestConfigSubcommands(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want kiln.ConfigSubcommand
	}{
		{[]string{"config"}, kiln.ConfigShow},
		{[]string{"config", "show"}, kiln.ConfigShow},
		{[]string{"config", "init"}, kiln.ConfigInit},
		{[]string{"config", "path"}, kiln.ConfigPath},
	} {
		ctx := t.Context()
		var got kiln.ConfigSubcommand
		rootCmd := NewRootCmd(ctx, withConfigFunc(func(_ kiln.RunParams, sub kiln.ConfigSubcommand) error {
			got = sub
			return nil
		}))
		rootCmd.SetArgs(tc.args)
		require.NoError(t, ExecuteWithFang(ctx, rootCmd))
		assert.Equal(t, tc.want, got)
	}
}

func TestConfigRejectsUnknownSubcommand(t *testing.T) {
	ctx := t.Context()
	rootCmd := NewRootCmd(ctx, withConfigFunc(func(kiln.RunParams, kiln.ConfigSubcommand) error {
		t.Fatal("config func should not run")
		return nil
	}))
	rootCmd.SetArgs([]string{"config", "bogus"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	require.Error(t, ExecuteWithFang(ctx, rootCmd))
}
