package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file on top of the defaults. Unknown
// keys are a hard decode error from BurntSushi/toml's MetaData when strict
// decoding finds leftover keys.
func Load(path string, logger *slog.Logger) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown keys in %s: %v", path, undecoded)
	}

	logger.Debug("config: file parsed", "path", path)

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// the defaults untouched. Supports a zero-config first run.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config: file not found, using defaults", "path", path)
		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// Resolve applies the full override chain: defaults -> optional TOML file
// at APP_DATA_DIR/config.toml -> environment variables -> validation.
// APP_DATA_DIR itself is resolved first (env override, else the XDG
// default) since it determines where the TOML overlay lives.
func Resolve(env EnvOverrides, logger *slog.Logger) (*Config, error) {
	appDataDir := env.AppDataDir
	if appDataDir == "" {
		appDataDir = DefaultAppDataDir()
	}

	cfg, err := LoadOrDefault(ConfigPath(appDataDir), logger)
	if err != nil {
		return nil, err
	}

	cfg.AppDataDir = appDataDir

	if err := applyEnvOverrides(cfg, env); err != nil {
		return nil, fmt.Errorf("config: applying environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config, env EnvOverrides) error {
	if env.LocalRoot != "" {
		cfg.LocalRoot = env.LocalRoot
	}

	if env.LakeRoot != "" {
		cfg.LakeRoot = env.LakeRoot
	}

	if env.AppDataDir != "" {
		cfg.AppDataDir = env.AppDataDir
	}

	if env.HashAlgo != "" {
		cfg.HashAlgo = env.HashAlgo
	}

	if env.ListenAddr != "" {
		cfg.ListenAddr = env.ListenAddr
	}

	var err error

	if cfg.LocalAllowDeleteFromSync, err = parseBoolOverride(env.LocalAllowDelete, cfg.LocalAllowDeleteFromSync); err != nil {
		return fmt.Errorf("%s: %w", EnvLocalAllowDelete, err)
	}

	if cfg.LakeAllowDeleteFromSync, err = parseBoolOverride(env.LakeAllowDelete, cfg.LakeAllowDeleteFromSync); err != nil {
		return fmt.Errorf("%s: %w", EnvLakeAllowDelete, err)
	}

	if cfg.QueueConcurrency, err = parseIntOverride(env.QueueConcurrency, cfg.QueueConcurrency); err != nil {
		return fmt.Errorf("%s: %w", EnvQueueConcurrency, err)
	}

	if cfg.QueueRetryCount, err = parseIntOverride(env.QueueRetryCount, cfg.QueueRetryCount); err != nil {
		return fmt.Errorf("%s: %w", EnvQueueRetryCount, err)
	}

	if cfg.HashWorkers, err = parseIntOverride(env.HashWorkers, cfg.HashWorkers); err != nil {
		return fmt.Errorf("%s: %w", EnvHashWorkers, err)
	}

	return nil
}

func parseBoolOverride(raw string, fallback bool) (bool, error) {
	if raw == "" {
		return fallback, nil
	}

	return strconv.ParseBool(raw)
}

func parseIntOverride(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}

	return strconv.Atoi(raw)
}
