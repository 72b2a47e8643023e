package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("STOCKFORECAST_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("STOCKFORECAST_STORAGE_DRIVER", StorageMemory)

	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

// chdirTemp moves into an empty directory so no config.toml is picked up.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "stockforecast", cfg.App.Name)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, 30, cfg.Worker.RecomputeHorizonDays)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Contains(t, cfg.Access.ReadPolicy, "stock.manager")
}

func TestLoad_FileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
[app]
port = "9090"

[worker]
batch_size = 25
poll_interval = "500ms"
`), 0o600))

	t.Setenv("STOCKFORECAST_APP_PORT", "7070")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.App.Port, "env overrides file")
	assert.Equal(t, 25, cfg.Worker.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.PollInterval)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)

	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())

	cfg.Log.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.Storage.Driver = StoragePostgres
	cfg.Database.DSN = ""
	assert.ErrorContains(t, cfg.Validate(), "database.dsn")

	cfg = validConfig(t)
	cfg.JWT.Secret = "short"
	assert.Error(t, cfg.Validate())
}
