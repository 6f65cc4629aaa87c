package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/config"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cartsync", cmd.Use)
	assert.Contains(t, cmd.Long, "optimistically")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"tab", "show", "remote", "fake-gateway", "scenario"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestRemoteSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"show", "remove", "shipping"} {
		sub, _, err := cmd.Find([]string{"remote", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "base-url", "db"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestScenarioCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	scenarioCmd, _, err := cmd.Find([]string{"scenario"})
	require.NoError(t, err)

	updateFlag := scenarioCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)
	require.NotNil(t, scenarioCmd.Flags().Lookup("filter"))
}

func TestFakeGatewayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	fgCmd, _, err := cmd.Find([]string{"fake-gateway"})
	require.NoError(t, err)

	addr := fgCmd.Flags().Lookup("addr")
	require.NotNil(t, addr)
	assert.Equal(t, ":8787", addr.DefValue)
	require.NotNil(t, fgCmd.Flags().Lookup("catalog"))
	require.NotNil(t, fgCmd.Flags().Lookup("require-session"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cartsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_key: 1\n"), 0644))

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cartsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: http://file.example\nrollback: snapshot\n"), 0644))

	opts := &RootOptions{ConfigPath: path, BaseURL: "http://flag.example", Database: filepath.Join(dir, "x.db")}
	require.NoError(t, opts.resolveConfig())
	assert.Equal(t, "http://flag.example", opts.Config.BaseURL)
	assert.Equal(t, "snapshot", opts.Config.Rollback)
	assert.Equal(t, filepath.Join(dir, "x.db"), opts.Config.Database)
}

// testOptions returns root options with a private store and bus directory.
func testOptions(t *testing.T, format, baseURL string) *RootOptions {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database = filepath.Join(dir, "cart.db")
	cfg.BusDir = filepath.Join(dir, "bus")
	cfg.Timeout = "2s"
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &RootOptions{Format: format, Config: cfg}
}
