package environment

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/programme-lv/judgehost/internal/xdg"
)

type EnvConfig struct {
	CacheDir    string
	HostsFile   string
	Performance bool
}

// ReadEnvConfig loads the optional .env file and resolves the process
// configuration from environment variables, falling back to the XDG
// directories of the judged app.
func ReadEnvConfig() *EnvConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", slog.Any("error", err))
	}

	result := &EnvConfig{}

	result.CacheDir = os.Getenv("JUDGED_CACHE_DIR")
	if result.CacheDir == "" {
		result.CacheDir = xdg.AppCacheDir("judged")
	}

	result.HostsFile = os.Getenv("JUDGED_HOSTS_FILE")
	if result.HostsFile == "" {
		result.HostsFile = filepath.Join(xdg.AppConfigDir("judged"), "hosts.toml")
	}

	perf := os.Getenv("JUDGED_PERFORMANCE")
	result.Performance = perf == "1" || perf == "true" || perf == "on"

	return result
}
