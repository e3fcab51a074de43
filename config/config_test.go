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
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "sqlite", cfg.AuditDriver)
	require.NotEmpty(t, cfg.AdminToken)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file should be written")

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.AdminToken, reloaded.AdminToken)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("AdminToken = \"secret\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "./marketd-data", cfg.DataDir)
}

func TestLoadValidation(t *testing.T) {
	writeAndLoad := func(t *testing.T, body string) error {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Load(path)
		return err
	}

	require.Error(t, writeAndLoad(t, "AdminToken = \"x\"\nAuditDriver = \"oracle\"\n"))
	require.Error(t, writeAndLoad(t, "AdminToken = \"x\"\nAuditDriver = \"postgres\"\n"))
	require.Error(t, writeAndLoad(t, "RPCAddress = \"127.0.0.1:9000\"\n"), "missing admin credentials")
	require.NoError(t, writeAndLoad(t, "JWTSecret = \"s3cret\"\n"))
}
