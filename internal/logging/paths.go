package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the directory for Custom-RAG log files.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "customrag", "logs")
	}
	return filepath.Join(home, ".customrag", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "customrag.log")
}
