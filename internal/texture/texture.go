// Package texture is the handoff boundary between decoded tile images and the
// rendering context that owns GPU textures.
package texture

import (
	"errors"
	"image"
)

var (
	ErrUnknownTexture = errors.New("texture: unknown handle")
	ErrSizeMismatch   = errors.New("texture: sub-image does not match texture size")
)

// Handle names a texture object inside a Context. The zero Handle is "no texture".
type Handle uint32

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterLinearMipmapNearest
)

type Wrap int

const (
	WrapRepeat Wrap = iota
	WrapClampToEdge
)

// Params are the sampling parameters applied when a texture is created.
type Params struct {
	MinFilter        Filter
	MagFilter        Filter
	WrapS            Wrap
	WrapT            Wrap
	PremultiplyAlpha bool
	// Anisotropy is 0 when the device has no anisotropic filtering.
	Anisotropy float32
}

// Context is the subset of a graphics context the uploader needs. It must only
// be used from the goroutine owning the rendering surface.
type Context interface {
	CreateTexture() (Handle, error)
	DeleteTexture(h Handle)
	SetParams(h Handle, p Params) error
	// TexImage2D (re)specifies the texture storage from img.
	TexImage2D(h Handle, img *image.RGBA) error
	// TexSubImage2D replaces the contents of level 0 in place.
	TexSubImage2D(h Handle, img *image.RGBA) error
	GenerateMipmap(h Handle) error
	Size(h Handle) (image.Point, bool)
	// MaxAnisotropy reports the anisotropic filtering limit, if supported.
	MaxAnisotropy() (float32, bool)
}
