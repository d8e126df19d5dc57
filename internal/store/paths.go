package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of cogmap's data directory.
const DirName = ".cogmap"

// DBFileName is the run history database inside DirName.
const DBFileName = "history.db"

// GlobalCogmapPath returns the path to the global .cogmap directory.
// On Unix: ~/.cogmap
// On Windows: %USERPROFILE%\.cogmap
func GlobalCogmapPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalCogmapPath returns the .cogmap directory for a project root.
func LocalCogmapPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// DefaultDBPath returns the run database for a project root, or the global
// one when projectRoot is empty.
func DefaultDBPath(projectRoot string) (string, error) {
	if projectRoot != "" {
		return filepath.Join(LocalCogmapPath(projectRoot), DBFileName), nil
	}
	global, err := GlobalCogmapPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(global, DBFileName), nil
}

// EnsureGlobalCogmapDir creates the global .cogmap directory if it doesn't
// exist.
func EnsureGlobalCogmapDir() error {
	globalPath, err := GlobalCogmapPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(globalPath, 0755); err != nil {
		return fmt.Errorf("failed to create global .cogmap directory: %w", err)
	}
	return nil
}
