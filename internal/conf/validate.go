package conf

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ValidateSettings checks the loaded settings for values the rest of the
// application cannot work with.
func ValidateSettings(settings *Settings) error {
	if settings.Main.DataRoot == "" {
		return fmt.Errorf("main.dataroot must not be empty")
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no database output enabled, enable output.sqlite or output.mysql")
	}

	if settings.Detector.Threshold < 0 || settings.Detector.Threshold > 1 {
		return fmt.Errorf("detector.threshold must be between 0.0 and 1.0, got %f", settings.Detector.Threshold)
	}

	if settings.Annotation.StrokeWidth <= 0 {
		return fmt.Errorf("annotation.strokewidth must be positive, got %d", settings.Annotation.StrokeWidth)
	}

	if _, err := colorful.Hex(settings.Annotation.StrokeColor); err != nil {
		return fmt.Errorf("annotation.strokecolor %q is not a valid hex color: %w", settings.Annotation.StrokeColor, err)
	}

	return nil
}
