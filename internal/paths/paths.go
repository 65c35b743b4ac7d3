// Package paths resolves the directories the relay writes to.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variable names used for path resolution.
const (
	envCacheDir = "CACHE_DIR"
)

// Common application directory and path constants.
const (
	appName               = "voice-relay"
	logsDirName           = "logs"
	clipsDirName          = "clips"
	dotCache              = ".cache"
	defaultDirPermissions = 0o750
)

// GetCacheDir returns the application's cache directory, respecting an environment
// variable override and falling back to a standard user-based cache directory.
func GetCacheDir() string {
	if cacheDir := os.Getenv(envCacheDir); cacheDir != "" {
		return cacheDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}

	return filepath.Join(homeDir, dotCache, appName)
}

// DefaultLogsDir is where log files go when no directory is configured.
func DefaultLogsDir() string {
	return filepath.Join(GetCacheDir(), logsDirName)
}

// DefaultClipsDir is where speech clips are written when no directory is configured.
func DefaultClipsDir() string {
	return filepath.Join(os.TempDir(), appName, clipsDirName)
}

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, mkdirErr)
		}
	}

	return nil
}
