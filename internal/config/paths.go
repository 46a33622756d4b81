package config

import (
	"os"
	"path/filepath"
)

// appName names the XDG data directory used as the default APP_DATA_DIR
// when neither a CLI flag nor the environment variable sets one.
const appName = "modellake"

// configFileName is the TOML overlay file's name within APP_DATA_DIR.
const configFileName = "config.toml"

// pidFileName is the serve daemon's PID/lock file name within APP_DATA_DIR.
const pidFileName = "modellake.pid"

// DefaultAppDataDir returns ~/.local/share/modellake (respecting
// XDG_DATA_HOME), the fallback when APP_DATA_DIR is unset.
func DefaultAppDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".local", "share", appName)
}

// ConfigPath returns the TOML overlay path within appDataDir.
func ConfigPath(appDataDir string) string {
	return filepath.Join(appDataDir, configFileName)
}

// PIDFilePath returns the serve daemon's PID/lock file path within appDataDir.
func PIDFilePath(appDataDir string) string {
	return filepath.Join(appDataDir, pidFileName)
}
