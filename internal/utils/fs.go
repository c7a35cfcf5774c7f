package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// DirStatus reports whether an output directory is usable.
type DirStatus struct {
	Exists   bool
	Writable bool
}

// FileExists reports whether path can be stat'ed.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates dirPath and its parents when missing.
func EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// CreateFile creates (or truncates) path after making sure its directory
// exists. Vocabulary exports, trie renderings, review sheets, model
// snapshots and config files are all written through it.
func CreateFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

// SaveTOMLFile encodes data as TOML into filePath.
func SaveTOMLFile(data any, filePath string) error {
	f, err := CreateFile(filePath)
	if err != nil {
		log.Errorf("Cannot write config: %v", err)
		return err
	}
	if err := toml.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", filePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filePath, err)
	}
	return nil
}

// GetAbsolutePath resolves path for display, "unknown" when empty.
func GetAbsolutePath(path string) string {
	if path == "" {
		return "unknown"
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// GetExecutableDir is the last resort config location when no home
// directory is available.
func GetExecutableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	return filepath.Dir(execPath), nil
}

// CheckDirStatus creates dirPath if needed and probes it with a temporary
// file. Failures are logged and reported as a non writable status.
func CheckDirStatus(dirPath string) DirStatus {
	if err := EnsureDir(dirPath); err != nil {
		log.Warnf("Directory unusable: %v", err)
		return DirStatus{}
	}
	tmp, err := os.CreateTemp(dirPath, ".wordmend-*")
	if err != nil {
		log.Warnf("Cannot write to directory %s: %v", dirPath, err)
		return DirStatus{Exists: true}
	}
	tmp.Close()
	os.Remove(tmp.Name())
	return DirStatus{Exists: true, Writable: true}
}
