// Package imaging decodes stored tile images into premultiplied RGBA pixels.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("imaging: unsupported image format")
	ErrEmptyImage        = errors.New("imaging: empty image data")
)

// Format is the encoding of stored tile images.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatPNG, nil
	case FormatPNG, FormatJPG, FormatJPEG, FormatWebP:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// transparentPNG is a 1x1 fully transparent PNG.
const transparentPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAAC0lEQVQYV2NgAAIAAAUAAarVyFEAAAAASUVORK5CYII="

// PlaceholderBytes returns the encoded placeholder served for coordinates with
// no stored tile. The result is identical on every call.
func PlaceholderBytes() []byte {
	data, _ := base64.StdEncoding.DecodeString(transparentPNG)
	return data
}

// Placeholder returns the decoded placeholder: a single transparent pixel.
func Placeholder() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 1, 1))
}

// Unwrap returns the encoded image bytes of a stored tile. Tiles may be stored
// raw, as base64 text, or as a data URL.
func Unwrap(data []byte) []byte {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return data
	}

	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "data:") {
		if _, payload, found := strings.Cut(text, ","); found {
			text = payload
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return data
	}
	return decoded
}

// Decode decodes a stored tile into premultiplied RGBA pixels. The encoding is
// sniffed from the bytes and returned alongside the image.
func Decode(data []byte) (*image.RGBA, Format, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	img, name, err := image.Decode(bytes.NewReader(Unwrap(data)))
	if err != nil {
		return nil, "", fmt.Errorf("decode tile image: %w", err)
	}
	return ToRGBA(img), Format(name), nil
}

// Matches reports whether a sniffed encoding satisfies the declared format.
func (f Format) Matches(sniffed Format) bool {
	if f == sniffed {
		return true
	}
	jpeg := func(x Format) bool { return x == FormatJPG || x == FormatJPEG }
	return jpeg(f) && jpeg(sniffed)
}

// ToRGBA converts img to *image.RGBA with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
