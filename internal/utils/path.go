package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

// PathResolver finds data files (vocabularies, corpora, model snapshots)
// given as relative paths in the config or on the command line.
type PathResolver struct {
	executableDir string
	homeDir       string
	configDir     string
}

// NewPathResolver creates a resolver rooted at the running executable
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	// Resolve any symlinks to get the actual binary location
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}

	pr := &PathResolver{
		executableDir: filepath.Dir(execPath),
		homeDir:       homeDir,
		configDir:     getConfigDir(homeDir),
	}
	log.Debugf("PathResolver initialized: execDir=%s, configDir=%s", pr.executableDir, pr.configDir)
	return pr, nil
}

// getConfigDir returns the appropriate config directory for the platform
func getConfigDir(homeDir string) string {
	switch runtime.GOOS {
	case "darwin", "linux":
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, "wordmend")
		}
		return filepath.Join(homeDir, ".config", "wordmend")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "wordmend")
		}
		return filepath.Join(homeDir, "AppData", "Roaming", "wordmend")
	default:
		return filepath.Join(homeDir, ".wordmend")
	}
}

// Candidates lists where a relative path is looked up, in order:
// 1. Current working directory
// 2. Relative to executable directory
// 3. config dir and its data/ subdirectory
func (pr *PathResolver) Candidates(path string) []string {
	path = ExpandHome(path, pr.homeDir)
	if filepath.IsAbs(path) {
		return []string{path}
	}
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, path))
	}
	candidates = append(candidates,
		filepath.Join(pr.executableDir, path),
		filepath.Join(pr.configDir, path),
		filepath.Join(pr.configDir, "data", path),
	)
	return candidates
}

// FindDataFile returns the first existing candidate for path. When none
// exists the path is returned unchanged so the caller reports it.
func (pr *PathResolver) FindDataFile(path string) string {
	if path == "" {
		return ""
	}
	for _, candidate := range pr.Candidates(path) {
		if stat, err := os.Stat(candidate); err == nil && !stat.IsDir() {
			log.Debugf("Resolved %s to %s", path, candidate)
			return candidate
		}
	}
	log.Debugf("Data file %s not found in any candidate location", path)
	return path
}

// GetConfigDir returns the config directory
func (pr *PathResolver) GetConfigDir() string {
	return pr.configDir
}

// ExpandHome replaces a leading ~/ with home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
