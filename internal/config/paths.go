package config

import (
	"os"
	"path/filepath"
)

const appName = "tomefetch"

// GetAppDir returns the directory holding settings and state.
// $TOMEFETCH_HOME wins, then $XDG_CONFIG_HOME/tomefetch, then ~/.config/tomefetch.
func GetAppDir() string {
	if dir := os.Getenv("TOMEFETCH_HOME"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// GetStateDir holds the history database.
func GetStateDir() string {
	return filepath.Join(GetAppDir(), "state")
}

// GetStateDBPath returns the path of the history database.
func GetStateDBPath() string {
	return filepath.Join(GetStateDir(), "state.db")
}

// GetLogsDir holds debug logs.
func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// GetRuntimeDir holds the server's lock, port, pid and token files.
func GetRuntimeDir() string {
	return filepath.Join(GetAppDir(), "run")
}

// EnsureDirs creates every directory the application writes to.
func EnsureDirs() error {
	for _, dir := range []string{GetAppDir(), GetStateDir(), GetLogsDir(), GetRuntimeDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
