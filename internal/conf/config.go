// config.go: settings struct and functions to load and save the
// DentaScan-Go configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for a rotated log file.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file, relative to DataRoot
}

// MainSettings contains top level settings for the application.
type MainSettings struct {
	Name     string    // name of this node, used for identification in logs
	DataRoot string    // root directory for patient image storage and the database
	Log      LogConfig // application log settings
}

// SQLiteSettings contains settings for the embedded SQLite database.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite output
	Path    string // path to the SQLite database file, relative to DataRoot
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL output
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings selects the persistence backend.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// DetectorSettings configures the external detection model runner.
type DetectorSettings struct {
	Command   string   // path to the model runner executable
	Args      []string // extra arguments passed before the image path
	ModelPath string   // path to model weights, passed to the runner
	Threshold float64  // confidence threshold, inclusive lower bound
}

// AnnotationSettings configures annotation rendering style.
type AnnotationSettings struct {
	StrokeColor string // hex color for box outlines
	StrokeWidth int    // box outline width in pixels
}

// Settings contains all configuration options for DentaScan-Go.
type Settings struct {
	Debug bool // true to enable debug logging

	Main       MainSettings
	Output     OutputSettings
	Detector   DetectorSettings
	Annotation AnnotationSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the active configuration.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the
// default config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it if necessary.
func Setting() *Settings {
	if GetSettings() == nil {
		if _, err := Load(); err != nil {
			log.Fatalf("Error loading settings: %v", err)
		}
	}
	return GetSettings()
}

// XrayDir returns the directory holding copied images for the given patient,
// partitioned by patient id under the data root.
func (s *Settings) XrayDir(patientID uint) string {
	return filepath.Join(s.Main.DataRoot, "xrays", fmt.Sprintf("%d", patientID))
}

// LogPath returns the path to the application log file, resolving relative
// paths against the data root.
func (s *Settings) LogPath() string {
	if filepath.IsAbs(s.Main.Log.Path) {
		return s.Main.Log.Path
	}
	return filepath.Join(s.Main.DataRoot, s.Main.Log.Path)
}

// DatabasePath returns the absolute path to the SQLite database file.
func (s *Settings) DatabasePath() string {
	if filepath.IsAbs(s.Output.SQLite.Path) {
		return s.Output.SQLite.Path
	}
	return filepath.Join(s.Main.DataRoot, s.Output.SQLite.Path)
}
