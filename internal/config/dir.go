package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvConfigDir = "PATCHCAT_CONFIG_DIR"
	appDirName   = "patchcat"
)

// Dir returns the configuration directory. PATCHCAT_CONFIG_DIR wins, then the
// user config dir, then the home directory, then the working directory.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, appDirName)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "."+appDirName)
	}
	return "." + appDirName
}

// WorkspaceDir holds JSON snapshots and the SQLite database.
func WorkspaceDir() string {
	return filepath.Join(Dir(), "workspaces")
}
