package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadOrDefaultMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "config.toml"), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadParsesOverlayOnTopOfDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
hash_workers = 16
queue_concurrency = 2
`), 0o644))

	cfg, err := Load(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.HashWorkers)
	assert.Equal(t, 2, cfg.QueueConcurrency)
	assert.Equal(t, defaultQueueRetryCount, cfg.QueueRetryCount)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`bogus_key = 1`), 0o644))

	_, err := Load(path, discardLogger())
	assert.Error(t, err)
}

func TestResolveAppliesEnvOverOverlay(t *testing.T) {
	localRoot := t.TempDir()
	lakeRoot := t.TempDir()
	appDataDir := t.TempDir()

	require.NoError(t, os.WriteFile(ConfigPath(appDataDir), []byte(`hash_workers = 8`), 0o644))

	env := EnvOverrides{
		LocalRoot:        localRoot,
		LakeRoot:         lakeRoot,
		AppDataDir:       appDataDir,
		HashWorkers:      "32",
		QueueConcurrency: "5",
	}

	cfg, err := Resolve(env, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, localRoot, cfg.LocalRoot)
	assert.Equal(t, lakeRoot, cfg.LakeRoot)
	assert.Equal(t, 32, cfg.HashWorkers, "env must win over the TOML overlay")
	assert.Equal(t, 5, cfg.QueueConcurrency)
}

func TestResolveFailsValidationWithoutRoots(t *testing.T) {
	env := EnvOverrides{AppDataDir: t.TempDir()}

	_, err := Resolve(env, discardLogger())
	assert.Error(t, err)
}

func TestParseBoolOverrideRejectsGarbage(t *testing.T) {
	_, err := parseBoolOverride("not-a-bool", false)
	assert.Error(t, err)
}

func TestParseIntOverrideRejectsGarbage(t *testing.T) {
	_, err := parseIntOverride("not-an-int", 1)
	assert.Error(t, err)
}
