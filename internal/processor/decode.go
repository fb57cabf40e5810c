package processor

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WEBP decoder with image.Decode

	"github.com/aliskhannn/watermarker/internal/model"
)

var errEmptyImage = errors.New("image has zero area")

// Decode reads an image from r, applying any EXIF orientation, and
// returns it with bounds starting at (0,0). The format is sniffed from
// the bytes; path is only used to attribute errors.
func Decode(r io.Reader, path string) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.NewError(model.ErrDecode, path, fmt.Errorf("failed to decode image: %w", err))
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, model.NewError(model.ErrDecode, path, errEmptyImage)
	}

	if b.Min != (image.Point{}) {
		img = imaging.Clone(img)
	}

	return img, nil
}
