// Package xdg resolves the XDG base directories the judge host keeps
// its config and test-data cache under.
package xdg

import (
	"os"
	"path/filepath"
)

func homeDir() string {
	home, err := os.UserHomeDir()
	if err == nil {
		return home
	}
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return "/tmp"
}

// ConfigHome returns the base directory for user-specific configuration files
func ConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".config")
}

// CacheHome returns the base directory for user-specific cached data
func CacheHome() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".cache")
}

// AppConfigDir returns the application-specific config directory
func AppConfigDir(appName string) string {
	return filepath.Join(ConfigHome(), appName)
}

// AppCacheDir returns the application-specific cache directory
func AppCacheDir(appName string) string {
	return filepath.Join(CacheHome(), appName)
}
