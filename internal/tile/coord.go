// Package tile holds the tile coordinate value type and the per-coordinate
// session object whose lifecycle the sources drive.
package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/hilbert"
)

// Scheme is the row addressing convention of a tile set.
type Scheme string

const (
	// SchemeXYZ addresses rows north-up (row 0 is the northmost row).
	SchemeXYZ Scheme = "xyz"
	// SchemeTMS addresses rows south-up (row 0 is the southmost row).
	SchemeTMS Scheme = "tms"
)

var ErrInvalidCoordinate = errors.New("tile: invalid coordinate")

// webMercatorExtent is half the width of the EPSG:3857 world square in meters.
const webMercatorExtent = 20037508.342789244

// Coordinate is a tile address in the XYZ scheme (Tiled web map).
type Coordinate struct {
	Z uint32
	X uint32
	Y uint32
}

func (c Coordinate) Valid() bool {
	return c.Z < 32 && c.X < (1<<c.Z) && c.Y < (1<<c.Z)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// FlipY converts the row between the north-up and south-up conventions.
// Applying it twice yields the original row.
func (c Coordinate) FlipY() uint32 {
	return (1 << c.Z) - 1 - c.Y
}

// OverscaleFactor is 2^max(0, Z-maxZoom).
func (c Coordinate) OverscaleFactor(maxZoom uint32) uint32 {
	if c.Z <= maxZoom {
		return 1
	}
	return 1 << (c.Z - maxZoom)
}

// Parent returns the ancestor of c at zoom. Zooms at or below c.Z return c.
func (c Coordinate) Parent(zoom uint32) Coordinate {
	if zoom >= c.Z {
		return c
	}
	shift := c.Z - zoom
	return Coordinate{Z: zoom, X: c.X >> shift, Y: c.Y >> shift}
}

// ID returns the PMTiles tile id of c: tiles are numbered zoom by zoom and
// along a Hilbert curve within a zoom.
func (c Coordinate) ID() (uint64, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCoordinate, c)
	}

	h, err := hilbert.NewHilbert(1 << c.Z)
	if err != nil {
		return 0, fmt.Errorf("tile id %v: %w", c, err)
	}
	tileCode, err := h.MapInverse(int(c.X), int(c.Y))
	if err != nil {
		return 0, fmt.Errorf("tile id %v: %w", c, err)
	}

	tilesCount := (1<<(c.Z*2) - 1) / 3
	return uint64(tileCode + tilesCount), nil
}

func (c Coordinate) Quadkey() string {
	var sb strings.Builder
	for i := c.Z; i > 0; i-- {
		digit := byte('0')
		mask := uint32(1) << (i - 1)
		if c.X&mask != 0 {
			digit++
		}
		if c.Y&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String()
}

// BBox3857 returns "minx,miny,maxx,maxy" of the tile in EPSG:3857 meters.
func (c Coordinate) BBox3857() string {
	size := 2 * webMercatorExtent / float64(uint64(1)<<c.Z)
	minX := -webMercatorExtent + float64(c.X)*size
	maxY := webMercatorExtent - float64(c.Y)*size
	values := []float64{minX, maxY - size, minX + size, maxY}

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// URL interpolates one of templates for c. Requests deeper than maxZoom address
// the maxZoom ancestor, which the consumer scales up.
func (c Coordinate) URL(templates []string, maxZoom uint32, scheme Scheme) string {
	if len(templates) == 0 {
		return ""
	}
	src := c.Parent(maxZoom)
	template := templates[(uint64(src.X)+uint64(src.Y))%uint64(len(templates))]

	y := src.Y
	if scheme == SchemeTMS {
		y = src.FlipY()
	}

	r := strings.NewReplacer(
		"{prefix}", fmt.Sprintf("%x%x", src.X%16, src.Y%16),
		"{z}", strconv.FormatUint(uint64(src.Z), 10),
		"{x}", strconv.FormatUint(uint64(src.X), 10),
		"{y}", strconv.FormatUint(uint64(y), 10),
		"{quadkey}", src.Quadkey(),
		"{bbox-epsg-3857}", src.BBox3857(),
	)
	return r.Replace(template)
}
