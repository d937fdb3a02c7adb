// Package util holds small helpers shared across the CLI and services.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a user-supplied path: a leading tilde becomes the
// home directory, $VAR and ${VAR} references are expanded, and the
// result is cleaned. Empty input stays empty.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		if path == "~" {
			return homeDir, nil
		}
		path = filepath.Join(homeDir, path[2:])
	}

	return filepath.Clean(os.ExpandEnv(path)), nil
}
