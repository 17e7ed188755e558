// Package render turns a stored detection sequence into a renderable
// annotation plan, independent of any display technology. Rendering is a
// pure function: identical inputs always produce identical plans.
package render

import (
	"fmt"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
	"github.com/dentascan/dentascan-go/internal/detector"
	"github.com/dentascan/dentascan-go/internal/errors"
)

const (
	// labelPadding is the padding applied per side around the label text.
	labelPadding = 2
	// fontName identifies the fixed bitmap face used for text measurement.
	fontName = "basicfont-7x13"
)

// Rect is an axis-aligned rectangle in source image pixel coordinates.
// Coordinates may lie outside the image bounds; the display surface is
// responsible for clipping.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Label describes the annotation text drawn above a box.
type Label struct {
	Text            string      `json:"text"`
	BackgroundRect  Rect        `json:"backgroundRect"`
	BackgroundColor color.NRGBA `json:"backgroundColor"`
	TextColor       color.NRGBA `json:"textColor"`
	Font            string      `json:"font"`
}

// BoxDecoration is the drawing instruction for a single detection.
type BoxDecoration struct {
	Rect        Rect        `json:"rect"`
	StrokeColor color.NRGBA `json:"strokeColor"`
	StrokeWidth int         `json:"strokeWidth"`
	Label       Label       `json:"label"`
}

// RenderPlan holds the geometry and text instructions needed to draw
// annotated boxes over an image.
type RenderPlan struct {
	ImageWidth  int             `json:"imageWidth"`
	ImageHeight int             `json:"imageHeight"`
	Boxes       []BoxDecoration `json:"boxes"`
}

// Style carries the configurable annotation colors and stroke width.
type Style struct {
	StrokeColor color.NRGBA
	StrokeWidth int
}

// DefaultStyle returns the fixed annotation style: cyan stroke, width 2.
func DefaultStyle() Style {
	return Style{
		StrokeColor: color.NRGBA{R: 0, G: 255, B: 255, A: 255},
		StrokeWidth: 2,
	}
}

// StyleFromSettings derives the annotation style from the configuration,
// falling back to the default style when the configured color is invalid.
func StyleFromSettings(settings *conf.Settings) Style {
	style := DefaultStyle()
	if settings.Annotation.StrokeWidth > 0 {
		style.StrokeWidth = settings.Annotation.StrokeWidth
	}
	if c, err := colorful.Hex(settings.Annotation.StrokeColor); err == nil {
		r, g, b := c.RGB255()
		style.StrokeColor = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return style
}

// labelBackground is the semi-transparent black behind label text.
var labelBackground = color.NRGBA{R: 0, G: 0, B: 0, A: 160}

// Render produces an annotation plan for the given image dimensions and
// detection sequence using the default style. Detections are rendered in
// stored order.
func Render(imageWidth, imageHeight int, detections []datastore.Detection) (*RenderPlan, error) {
	return RenderWithStyle(imageWidth, imageHeight, detections, DefaultStyle())
}

// RenderWithStyle is Render with an explicit style.
func RenderWithStyle(imageWidth, imageHeight int, detections []datastore.Detection, style Style) (*RenderPlan, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return nil, invalidGeometry("image dimensions must be positive, got %dx%d", imageWidth, imageHeight)
	}

	plan := &RenderPlan{
		ImageWidth:  imageWidth,
		ImageHeight: imageHeight,
		Boxes:       make([]BoxDecoration, 0, len(detections)),
	}

	for i := range detections {
		d := &detections[i]
		if err := validateBox(d); err != nil {
			return nil, err
		}

		text := fmt.Sprintf("%s %.2f", detector.ClassName(d.ClassID), d.Confidence)
		textWidth, lineHeight := measureText(text)

		bgWidth := float64(textWidth + 2*labelPadding)
		bgHeight := float64(lineHeight + 2)

		// Label background sits directly above the box's top-left corner.
		// No clamping if it extends above the image's top edge.
		box := BoxDecoration{
			Rect: Rect{
				X: d.X1,
				Y: d.Y1,
				W: d.Width(),
				H: d.Height(),
			},
			StrokeColor: style.StrokeColor,
			StrokeWidth: style.StrokeWidth,
			Label: Label{
				Text: text,
				BackgroundRect: Rect{
					X: d.X1,
					Y: d.Y1 - bgHeight,
					W: bgWidth,
					H: bgHeight,
				},
				BackgroundColor: labelBackground,
				TextColor:       style.StrokeColor,
				Font:            fontName,
			},
		}
		plan.Boxes = append(plan.Boxes, box)
	}

	return plan, nil
}

// measureText returns the pixel extent of text in the fixed bitmap face and
// the face line height. basicfont metrics are integral, keeping the plan
// deterministic across platforms.
func measureText(text string) (width, lineHeight int) {
	face := basicfont.Face7x13
	return font.MeasureString(face, text).Ceil(), face.Height
}

// validateBox rejects malformed detection geometry.
func validateBox(d *datastore.Detection) error {
	coords := [...]float64{d.X1, d.Y1, d.X2, d.Y2, d.Confidence}
	for _, v := range coords {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidGeometry("detection contains non-finite coordinate or confidence")
		}
	}
	if d.X2 < d.X1 || d.Y2 < d.Y1 {
		return invalidGeometry("detection box is inverted: (%g,%g)-(%g,%g)", d.X1, d.Y1, d.X2, d.Y2)
	}
	return nil
}

func invalidGeometry(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("render").
		Category(errors.CategoryValidation).
		Build()
}
