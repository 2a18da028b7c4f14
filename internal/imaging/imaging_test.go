package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetectType(t *testing.T) {
	ct, ext, err := DetectType(pngBytes(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, ".png", ext)

	ct, _, err = DetectType([]byte("%PDF-1.7 not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, "application/pdf", ct)
}

func TestProcess_ResizesWideImages(t *testing.T) {
	p, err := Process(pngBytes(t, 800, 400), 200)
	require.NoError(t, err)
	assert.Equal(t, 800, p.Width)
	assert.Equal(t, 400, p.Height)

	thumb, format, err := image.Decode(bytes.NewReader(p.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, thumb.Bounds().Dx())
	assert.Equal(t, 100, thumb.Bounds().Dy())
}

func TestProcess_KeepsSmallImages(t *testing.T) {
	p, err := Process(pngBytes(t, 50, 30), 200)
	require.NoError(t, err)
	thumb, _, err := image.Decode(bytes.NewReader(p.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, 50, thumb.Bounds().Dx())
}

func TestProcess_RejectsGarbage(t *testing.T) {
	_, err := Process([]byte("definitely not pixels"), 200)
	assert.Error(t, err)
}
