package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filexfer.ini")
	contents := "[server]\nport = 9000\nroot_dir = /data/incoming\n\n[limits]\nretry_budget = 5\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/data/incoming", cfg.RootDir)
	assert.Equal(t, 5, cfg.RetryBudget)
	// backlog and ready_timeout were not in the file, so defaults survive.
	assert.Equal(t, DefaultBacklog, cfg.Backlog)
	assert.Equal(t, DefaultReadyTimeout, cfg.ReadyTimeout)
}

func TestLoadWithMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	assert.Error(t, err)
}
