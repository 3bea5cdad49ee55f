package source

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/tilesource/internal/imaging"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
)

var (
	ErrUnsupportedTileSize = errors.New("source: unsupported tile size")
	ErrStorageUnavailable  = errors.New("source: local tile storage unavailable")
	ErrLoad                = errors.New("source: tile load failed")
	ErrInvalidOptions      = errors.New("source: invalid options")
)

// ConfigError is returned by constructors when a source cannot be built from
// its options. There is no degraded mode.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("source config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type Type string

const (
	TypeVector      Type = "vector"
	TypeRasterLocal Type = "raster-local"
)

const (
	// VectorTileSize is the only tile dimension the vector backend renders.
	VectorTileSize = 512

	DefaultMaxZoom = 22
)

// Options is the construction-time configuration of a source. It is not
// changed after construction.
type Options struct {
	ID     string      `json:"id" validate:"required"`
	Type   Type        `json:"type" validate:"required,oneof=vector raster-local"`
	URL    string      `json:"url,omitempty"`
	Tiles  []string    `json:"tiles,omitempty" validate:"required_without=URL,dive,required"`
	Scheme tile.Scheme `json:"scheme" validate:"omitempty,oneof=xyz tms"`

	// TileSize defaults to 512 when zero and MaxZoom to 22 when nil.
	TileSize int     `json:"tileSize" validate:"gte=0"`
	MinZoom  uint32  `json:"minzoom"`
	MaxZoom  *uint32 `json:"maxzoom,omitempty" validate:"omitempty,lte=30"`

	// Bounds is west, south, east, north in degrees.
	Bounds *[4]float64 `json:"bounds,omitempty"`

	ImageFormat         string `json:"imageFormat,omitempty" validate:"omitempty,oneof=png jpg jpeg webp"`
	RefreshExpiredTiles bool   `json:"refreshExpiredTiles"`
}

// Zoom returns a pointer to z for Options.MaxZoom.
func Zoom(z uint32) *uint32 {
	return &z
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalize fills defaults and validates o.
func (o Options) normalize() (Options, error) {
	if o.Scheme == "" {
		o.Scheme = tile.SchemeXYZ
	}
	if o.TileSize == 0 {
		o.TileSize = VectorTileSize
	}
	if o.MaxZoom == nil {
		o.MaxZoom = Zoom(DefaultMaxZoom)
	} else {
		o.MaxZoom = Zoom(*o.MaxZoom)
	}
	if o.Type == TypeRasterLocal && o.ImageFormat == "" {
		o.ImageFormat = string(imaging.FormatPNG)
	}

	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return o, &ConfigError{
				Field: fe.Field(),
				Err:   fmt.Errorf("%w: failed %q validation", ErrInvalidOptions, fe.Tag()),
			}
		}
		return o, &ConfigError{Field: "Options", Err: err}
	}

	if o.MinZoom > *o.MaxZoom {
		return o, &ConfigError{
			Field: "MinZoom",
			Err:   fmt.Errorf("%w: minzoom %d above maxzoom %d", ErrInvalidOptions, o.MinZoom, *o.MaxZoom),
		}
	}
	if b := o.Bounds; b != nil && (b[0] > b[2] || b[1] > b[3]) {
		return o, &ConfigError{Field: "Bounds", Err: fmt.Errorf("%w: %v", ErrInvalidOptions, *b)}
	}
	return o, nil
}
