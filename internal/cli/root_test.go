package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tead", cmd.Use)
	assert.Contains(t, cmd.Long, "recorded function calls")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"list", "show", "gen", "clean"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
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

	for _, name := range []string{"storage", "dir", "trace-format", "db", "redis"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Empty(t, flag.DefValue, "%s defaults to the configuration", name)
	}
}

func TestSelectionFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"list", "gen", "clean"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			for _, flag := range []string{"target", "after", "before", "where"} {
				assert.NotNil(t, sub.Flags().Lookup(flag), "--%s", flag)
			}
		})
	}

	clean, _, err := cmd.Find([]string{"clean"})
	require.NoError(t, err)
	assert.Nil(t, clean.Flags().Lookup("limit"), "clean deletes every match")
}

func TestInvalidFormat(t *testing.T) {
	res := execute(t, "list", "--format", "xml")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), `invalid format "xml"`)
}

func TestInvalidStorageFlag(t *testing.T) {
	res := execute(t, "list", "--storage", "s3")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "invalid configuration")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info")

	logger.Debug("hidden")
	logger.Info("entries deleted", "count", 3)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "entries deleted")
	assert.Contains(t, buf.String(), "count=3")

	buf.Reset()
	newLogger(&buf, "not-a-level").Info("falls back to info")
	assert.Contains(t, buf.String(), "falls back to info")
}
