// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/cartographer-cli/internal/config"
)

// withTestConfig points the package-level config at a throwaway session dir so
// command tests never touch the real home directory.
func withTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	c := config.NewDefault()
	c.Session.Dir = filepath.Join(t.TempDir(), "sessions")
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestRootCmdVersionFlag(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs([]string{"--version"})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), Version)
}

func TestExploreCmdRequiresURLOrResume(t *testing.T) {
	withTestConfig(t)

	cmd := newExploreCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either --url or --resume")
}

func TestSessionsListEmpty(t *testing.T) {
	withTestConfig(t)

	cmd := newSessionsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"list"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "no persisted sessions")
}

func TestSessionsClearUnknownID(t *testing.T) {
	withTestConfig(t)

	cmd := newSessionsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"clear", "no-such-session"})

	// Clearing an absent session is idempotent, not an error.
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "cleared session")
}
