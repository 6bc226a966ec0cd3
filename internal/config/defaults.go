package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultSystemPrompt is used in interactive test mode when no system prompt
// is configured or given on the command line.
const DefaultSystemPrompt = "You are my best assistance."

// DefaultConfigPath returns the default path for the shmbridge config
// directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "shmbridge", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "shmbridge")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "shmbridge")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "shmbridge")
		}
		return filepath.Join(home, ".config", "shmbridge")
	}
}

