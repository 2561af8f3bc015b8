package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appDirName = ".cbot"

const configPathEnv = "CBOT_CONFIG"

// DataDir returns the base data directory for cbot.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// ConfigPath returns the config file path. CBOT_CONFIG overrides it.
func ConfigPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv(configPathEnv)); override != "" {
		return resolveConfigPath(override)
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "config.toml"), nil
}

// RecentsPath returns the path to the local index of started conversations.
func RecentsPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "recents.db"), nil
}

// DefaultLogPath returns where the chat UI writes its log.
func DefaultLogPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "cbot.log"), nil
}

func resolveConfigPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}
