package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marksync/internal/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "marksync "))
}

func TestTokenCommandMintsValidToken(t *testing.T) {
	t.Setenv("MARKSYNC_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("MARKSYNC_JWT_SECRET", "s3cret")

	out, err := execute(t, "token", "--account", "alice", "--device", "laptop")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(strings.TrimSpace(out), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Account)
	assert.Equal(t, "laptop", claims.Device)
}

func TestTokenCommandRequiresAccount(t *testing.T) {
	_, err := execute(t, "token")
	require.Error(t, err)
}

func TestResetHasNoLocalMode(t *testing.T) {
	reset, _, err := newRootCmd().Find([]string{"reset"})
	require.NoError(t, err)
	assert.Nil(t, reset.Flags().Lookup("local"))

	sync, _, err := newRootCmd().Find([]string{"sync"})
	require.NoError(t, err)
	assert.NotNil(t, sync.Flags().Lookup("local"))
	assert.NotNil(t, sync.Flags().Lookup("source"))
}

func TestStatusLocalReportsDisconnected(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MARKSYNC_ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("MARKSYNC_REMOTE_URL", "")
	t.Setenv("MARKSYNC_STATE_BACKEND", "file")
	t.Setenv("MARKSYNC_STATE_FILE", filepath.Join(dir, "state.json"))
	t.Setenv("MARKSYNC_TREE_FILE", "")
	t.Setenv("MARKSYNC_LOG_LEVEL", "error")

	out, err := execute(t, "status", "--local")
	require.NoError(t, err)
	assert.Contains(t, out, `"connected": false`)
}
