package commands

import (
	"os"
	"path/filepath"

	"github.com/henryproto/turnstile-emu/internal/config"
	"github.com/henryproto/turnstile-emu/internal/logger"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// GetDefaultStateDir returns the default state directory path.
func GetDefaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp"
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "turnstile")
}

// GetDefaultCatalogPath returns the default sqlite catalog path used
// when config.Catalog.Path is relative and the caller wants it rooted
// under the state directory instead of the working directory.
func GetDefaultCatalogPath() string {
	return filepath.Join(GetDefaultStateDir(), "turnstile.db")
}

// resolveCatalogPath returns cfg's configured catalog path, rooting a
// bare filename (the config default) under the state directory so
// repeated runs from different working directories share one database.
func resolveCatalogPath(path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || filepath.Dir(path) != "." {
		return path
	}
	_ = os.MkdirAll(GetDefaultStateDir(), 0o755)
	return filepath.Join(GetDefaultStateDir(), path)
}
