package importlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
)

const defaultImportFile = "import-projects.json"

var ErrMissingLogPath = errors.New("Please set the VULNMAP_LOG_PATH e.g. export VULNMAP_LOG_PATH='~/my/path'")

// LoggingPath makes sure dir exists and returns it as an absolute path.
func LoggingPath(dir string) (string, error) {
	if dir == "" {
		return "", ErrMissingLogPath
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return "", fmt.Errorf("Failed to auto create the path %s provided in the VULNMAP_LOG_PATH. Please check this variable is set correctly: %w", dir, err)
	}
	return filepath.Abs(expanded)
}

// ImportProjectsFile locates the import file: p itself when it names an
// existing .json file, otherwise import-projects.json inside p.
func ImportProjectsFile(p string) (string, error) {
	if p == "" {
		return "", errors.New("Please set the VULNMAP_IMPORT_PATH environment variable (for example export VULNMAP_IMPORT_PATH='~/my/path/to/file') or set it with --file='~/my/path/to/file'")
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}

	var tried []string
	if filepath.Ext(expanded) == ".json" {
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return "", err
		}
		tried = append(tried, abs)
		if fileExists(abs) {
			return abs, nil
		}
	}

	defaultFile, err := filepath.Abs(filepath.Join(expanded, defaultImportFile))
	if err != nil {
		return "", err
	}
	tried = append(tried, defaultFile)
	if fileExists(defaultFile) {
		return defaultFile, nil
	}

	return "", fmt.Errorf("Could not find the import file, locations tried:%s. Please set the location via --file or VULNMAP_IMPORT_PATH e.g. export VULNMAP_IMPORT_PATH='~/my/path/to/import-projects.json'", strings.Join(tried, ","))
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
