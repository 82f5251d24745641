package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - RFQ_CONFIG_PATH: config file location (default: ~/.config/rfq.toml)
//   - RFQ_HOME: base directory for crawler data (default: ~/.local/share/rfq)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("RFQ_CONFIG_PATH", ".config", "rfq.toml")
	if err != nil {
		return nil, err
	}

	baseDir, err := envOrHome("RFQ_HOME", ".local", "share", "rfq")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env, or the path elems joined under the
// user's home directory.
func envOrHome(env string, elems ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elems...)...), nil
}
