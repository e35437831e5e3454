package cmd

import (
	"os"
	"path/filepath"

	"github.com/appforge/appforge/internal/config"
	"github.com/appforge/appforge/internal/log"
)

const defaultConfigPath = "appforge.yaml"

// loadConfig builds the run configuration and a logger honoring the
// global flags. The logger becomes the process default.
func loadConfig() (*config.Config, *log.Logger, error) {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	level := log.ParseLevel(cfg.Logging.Level)
	if verbose {
		level = log.LevelDebug
	}
	logger := log.New(log.Config{
		Level:  level,
		Format: log.ParseFormat(cfg.Logging.Format),
		Output: os.Stderr,
	})
	log.SetDefaultLogger(logger)

	return cfg, logger, nil
}

// workspacePath resolves a config path relative to the workspace root.
func workspacePath(cfg *config.Config, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(cfg.Workspace.Root, rel)
}
