package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./unitmint-data", cfg.DataDir)
	require.Equal(t, "local", cfg.Env)
	require.Zero(t, cfg.PenaltyMaxBps)

	// The default file is persisted and loadable.
	_, err = os.Stat(path)
	require.NoError(t, err)
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "DataDir = \"/var/lib/unitmint\"\nEnv = \"prod\"\nPenaltyMaxBps = 2500\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/unitmint", cfg.DataDir)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, uint64(2500), cfg.PenaltyMaxBps)
	require.Equal(t, uint64(2500), cfg.Penalty().MaxBps)
}

func TestLoadRejectsInvalidPenalty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "DataDir = \"./data\"\nPenaltyMaxBps = 10001\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
