package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeArtifact writes data to path, creating parent directories on demand.
func writeArtifact(path string, data string) error {
	if err := os.WriteFile(path, []byte(data), 0o644); err == nil {
		return nil
	}

	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", parent, err)
	}

	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
