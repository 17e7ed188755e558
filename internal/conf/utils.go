package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/dentascan/dentascan-go/internal/errors"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns the default config file locations for the
// current operating system, most specific first.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "dentascan-go"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "dentascan-go"),
			"/etc/dentascan-go",
		}
	}

	return configPaths, nil
}
