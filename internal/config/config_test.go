package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "revdeck.db", cfg.DBPath)
	assert.Equal(t, "distribute", cfg.Spread)
	assert.Equal(t, 20*time.Minute, cfg.CollapseTime)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "revdeck.db", cfg.DBPath)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revdeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /tmp/col.db\nspread: new-first\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/col.db", cfg.DBPath)
	assert.Equal(t, "new-first", cfg.Spread)
	assert.Equal(t, "info", cfg.LogLevel, "unset keys keep their defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revdeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /tmp/from-file.db\n"), 0o644))
	t.Setenv("REVDECK_DB_PATH", "/tmp/from-env.db")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.DBPath)
}

func TestFlagsOverrideEverything(t *testing.T) {
	t.Setenv("REVDECK_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log_level", "", "")
	require.NoError(t, flags.Parse([]string{"--log_level=debug"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("REVDECK_SPREAD", "sideways")
	_, err := Load("", nil)
	assert.Error(t, err)
}
