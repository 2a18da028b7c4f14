// Package imaging validates uploaded pictures and renders their thumbnails.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// AllowedTypes maps accepted content types to the file extension they are stored under
var AllowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ErrUnsupportedType is returned for content that is not an accepted image format
var ErrUnsupportedType = errors.New("unsupported image type")

// DetectType sniffs the content type from the leading bytes, ignoring any
// client-supplied header
func DetectType(data []byte) (contentType, ext string, err error) {
	contentType = http.DetectContentType(data)
	ext, ok := AllowedTypes[contentType]
	if !ok {
		return contentType, "", ErrUnsupportedType
	}
	return contentType, ext, nil
}

// Processed is a decoded upload with its thumbnail
type Processed struct {
	Width     int
	Height    int
	Thumbnail []byte
}

// Process decodes data (applying EXIF orientation) and renders a JPEG
// thumbnail at most maxWidth pixels wide. Smaller images keep their size.
func Process(data []byte, maxWidth int) (*Processed, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	out := &Processed{Width: b.Dx(), Height: b.Dy()}

	thumb := image.Image(img)
	if maxWidth > 0 && b.Dx() > maxWidth {
		thumb = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	out.Thumbnail = buf.Bytes()
	return out, nil
}
