package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvLodPath  = "OMM_LOD_PATH"
	EnvDumpPath = "OMM_DUMP_PATH"
	EnvLogLevel = "OMM_LOG_LEVEL"
)

// LoadDotEnv loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// applyEnv applies environment overrides to the config.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvLodPath); v != "" {
		cfg.Data.LodPath = v
	}
	if v := os.Getenv(EnvDumpPath); v != "" {
		cfg.Data.DumpPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}
