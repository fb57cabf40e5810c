package processor

import (
	"bytes"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/aliskhannn/watermarker/internal/model"
)

// Quality is the fixed quality factor of lossy output formats.
const Quality = 92

// Format is an output encoding chosen from a file extension.
type Format struct {
	Name     string
	MIMEType string
	Lossy    bool
}

var (
	FormatPNG  = Format{Name: "png", MIMEType: "image/png"}
	FormatJPEG = Format{Name: "jpeg", MIMEType: "image/jpeg", Lossy: true}
	FormatWEBP = Format{Name: "webp", MIMEType: "image/webp", Lossy: true}
	FormatBMP  = Format{Name: "bmp", MIMEType: "image/bmp"}
	FormatGIF  = Format{Name: "gif", MIMEType: "image/gif"}
	FormatTIFF = Format{Name: "tiff", MIMEType: "image/tiff"}
)

var formatsByExt = map[string]Format{
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".webp": FormatWEBP,
	".bmp":  FormatBMP,
	".gif":  FormatGIF,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
}

// FormatFor picks the output format from the extension of a logical
// path. Unknown or missing extensions fall back to lossless PNG.
func FormatFor(logicalPath string) Format {
	if f, ok := formatsByExt[strings.ToLower(path.Ext(logicalPath))]; ok {
		return f
	}
	return FormatPNG
}

// Encode serializes img in the format implied by logicalPath.
func Encode(img image.Image, logicalPath string) (model.EncodedResult, error) {
	if img == nil || img.Bounds().Empty() {
		return model.EncodedResult{}, model.NewError(model.ErrEncode, logicalPath, errEmptyImage)
	}

	format := FormatFor(logicalPath)
	buf := new(bytes.Buffer)

	var err error
	switch format {
	case FormatJPEG:
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(Quality))
	case FormatWEBP:
		err = webp.Encode(buf, img, &webp.Options{Quality: Quality})
	case FormatBMP:
		err = imaging.Encode(buf, img, imaging.BMP)
	case FormatGIF:
		err = imaging.Encode(buf, img, imaging.GIF)
	case FormatTIFF:
		err = imaging.Encode(buf, img, imaging.TIFF)
	default:
		err = imaging.Encode(buf, img, imaging.PNG)
	}
	if err != nil {
		return model.EncodedResult{}, model.NewError(model.ErrEncode, logicalPath,
			fmt.Errorf("failed to encode %s image: %w", format.Name, err))
	}

	return model.EncodedResult{
		Path:     logicalPath,
		MIMEType: format.MIMEType,
		Data:     buf.Bytes(),
	}, nil
}
