package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 32<<20, cfg.Server.BodyLimit)
	assert.True(t, cfg.OCR.Enabled)
	assert.Equal(t, "spa", cfg.OCR.Language)
	assert.False(t, cfg.Extract.Debug)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
server:
  addr: ":7000"
ocr:
  enabled: false
extract:
  debug: true
`), 0o600))
	t.Setenv("LEDGER_SERVER_ADDR", ":9090")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Server.Addr, "environment wins over the file")
	assert.False(t, cfg.OCR.Enabled)
	assert.True(t, cfg.Extract.Debug)
}

func TestLoad_BadBodyLimit(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_SERVER_BODY_LIMIT", "0")

	_, err := Load(viper.New(), "")
	assert.ErrorContains(t, err, "body_limit")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("LEDGER_TEST_DOTENV", "")
	os.Unsetenv("LEDGER_TEST_DOTENV")

	require.NoError(t, LoadEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("LEDGER_TEST_DOTENV"))
}
