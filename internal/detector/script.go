package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/errors"
	"github.com/dentascan/dentascan-go/internal/logging"
)

// ScriptDetector runs the configured external model runner process for each
// image and decodes its JSON output. The runner is expected to print a JSON
// array of detections on stdout and exit zero.
type ScriptDetector struct {
	Settings *conf.Settings
	log      *slog.Logger
}

// NewScriptDetector creates a detector backed by the model runner named in
// the settings.
func NewScriptDetector(settings *conf.Settings) *ScriptDetector {
	return &ScriptDetector{
		Settings: settings,
		log:      logging.ForService("detector"),
	}
}

// Detect invokes the model runner with the image path and confidence
// threshold. Any runner failure or malformed output is a detector error,
// never a silent empty result.
func (sd *ScriptDetector) Detect(ctx context.Context, imagePath string, confidenceThreshold float64) ([]RawDetection, error) {
	args := make([]string, 0, len(sd.Settings.Detector.Args)+5)
	args = append(args, sd.Settings.Detector.Args...)
	args = append(args,
		"--model", sd.Settings.Detector.ModelPath,
		"--conf", fmt.Sprintf("%g", confidenceThreshold),
		imagePath,
	)

	cmd := exec.CommandContext(ctx, sd.Settings.Detector.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, errors.New(fmt.Errorf("model runner failed: %w", err)).
			Component("detector").
			Category(errors.CategoryDetector).
			Context("command", sd.Settings.Detector.Command).
			Context("stderr", stderr.String()).
			Build()
	}

	detections, err := decodeDetections(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	sd.log.Debug("detection complete",
		"image", imagePath,
		"detections", len(detections),
		"duration_ms", time.Since(start).Milliseconds())

	return detections, nil
}

// decodeDetections parses the runner's JSON output and validates each entry.
func decodeDetections(data []byte) ([]RawDetection, error) {
	var detections []RawDetection
	if err := json.Unmarshal(data, &detections); err != nil {
		return nil, errors.New(fmt.Errorf("malformed model runner output: %w", err)).
			Component("detector").
			Category(errors.CategoryDetector).
			Build()
	}

	for i := range detections {
		d := &detections[i]
		if d.Confidence < 0 || d.Confidence > 1 {
			return nil, errors.Newf("detection %d has confidence %f outside [0,1]", i, d.Confidence).
				Component("detector").
				Category(errors.CategoryDetector).
				Build()
		}
		if d.X2 < d.X1 || d.Y2 < d.Y1 {
			return nil, errors.Newf("detection %d has an inverted bounding box", i).
				Component("detector").
				Category(errors.CategoryDetector).
				Build()
		}
	}

	return detections, nil
}
