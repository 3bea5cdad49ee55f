package imaging_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/jaennil/guide_helper/tilesource/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    imaging.Format
		wantErr bool
	}{
		{"", imaging.FormatPNG, false},
		{"png", imaging.FormatPNG, false},
		{"JPEG", imaging.FormatJPEG, false},
		{"jpg", imaging.FormatJPG, false},
		{"webp", imaging.FormatWebP, false},
		{"pbf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := imaging.ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, imaging.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMatches(t *testing.T) {
	assert.True(t, imaging.FormatPNG.Matches("png"))
	assert.True(t, imaging.FormatJPG.Matches("jpeg"))
	assert.True(t, imaging.FormatJPEG.Matches(imaging.FormatJPG))
	assert.False(t, imaging.FormatPNG.Matches("jpeg"))
	assert.False(t, imaging.FormatWebP.Matches("png"))
}

func TestPlaceholder(t *testing.T) {
	data := imaging.PlaceholderBytes()
	assert.Equal(t, data, imaging.PlaceholderBytes())

	img, format, err := imaging.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatPNG, format)
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())
	assert.Equal(t, color.RGBA{}, img.RGBAAt(0, 0))

	assert.Equal(t, img.Bounds(), imaging.Placeholder().Bounds())
	assert.Equal(t, color.RGBA{}, imaging.Placeholder().RGBAAt(0, 0))
}

func TestDecodeEncodings(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})
	raw := encodePNG(t, src)
	b64 := base64.StdEncoding.EncodeToString(raw)

	tests := map[string][]byte{
		"raw":      raw,
		"base64":   []byte(b64),
		"data url": []byte("data:image/png;base64," + b64 + "\n"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			img, format, err := imaging.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, imaging.FormatPNG, format)
			assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(1, 1))
			assert.Equal(t, color.RGBA{}, img.RGBAAt(0, 0))
		})
	}
}

func TestDecodeSniffsFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))

	img, format, err := imaging.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatJPEG, format)
	assert.Equal(t, image.Pt(8, 8), img.Bounds().Size())
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := imaging.Decode(nil)
	assert.ErrorIs(t, err, imaging.ErrEmptyImage)

	_, _, err = imaging.Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestUnwrapLeavesUnknownData(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02}
	assert.Equal(t, data, imaging.Unwrap(data))
}

func TestToRGBAOffsetOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 7))
	src.SetRGBA(6, 6, color.RGBA{G: 255, A: 255})

	out := imaging.ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(1, 1))
}
