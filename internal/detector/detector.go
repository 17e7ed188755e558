// Package detector defines the boundary to the external object detection
// model and the fixed class label table.
package detector

import (
	"context"
)

// RawDetection is one detection as returned by the model: class id,
// confidence and a bounding box in source image pixel coordinates.
// Field names follow the model runner's JSON output.
type RawDetection struct {
	ClassID    int     `json:"class"`
	Confidence float64 `json:"conf"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// Interface is the detection model collaborator. Detect runs inference on
// the image at imagePath and returns all detections with confidence at or
// above confidenceThreshold (inclusive lower bound). The call is synchronous
// and potentially slow; implementations should honor ctx cancellation where
// the underlying runner supports it.
type Interface interface {
	Detect(ctx context.Context, imagePath string, confidenceThreshold float64) ([]RawDetection, error)
}
