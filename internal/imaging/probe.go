// Package imaging verifies source images and probes their dimensions for
// the ingestion pipeline and render callers.
package imaging

import (
	"fmt"
	"image"

	disintegration "github.com/disintegration/imaging"

	"github.com/dentascan/dentascan-go/internal/errors"
)

// Info holds the probed properties of a source image.
type Info struct {
	Width  int
	Height int
}

// Probe opens and decodes the image at path and returns its dimensions. A
// missing, unreadable or corrupt file yields an image-decode error, which
// the pipeline surfaces as SourceImageUnreadable.
func Probe(path string) (Info, error) {
	img, err := Open(path)
	if err != nil {
		return Info{}, err
	}
	bounds := img.Bounds()
	return Info{Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// Open decodes the image at path.
func Open(path string) (image.Image, error) {
	img, err := disintegration.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("unreadable source image: %w", err)).
			Component("imaging").
			Category(errors.CategoryImageDecode).
			Context("path", path).
			Build()
	}
	return img, nil
}
