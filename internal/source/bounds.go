package source

import (
	"math"

	"github.com/jaennil/guide_helper/tilesource/internal/tile"
)

const maxMercatorLatitude = 85.051129

// TileBounds restricts a source to the tiles covering a geographic box.
type TileBounds struct {
	west, south, east, north float64
}

// NewTileBounds returns nil for nil bounds, meaning no restriction.
func NewTileBounds(bounds *[4]float64) *TileBounds {
	if bounds == nil {
		return nil
	}
	return &TileBounds{
		west:  math.Max(-180, bounds[0]),
		south: math.Max(-90, bounds[1]),
		east:  math.Min(180, bounds[2]),
		north: math.Min(90, bounds[3]),
	}
}

// Contains reports whether c intersects the bounds. A nil TileBounds contains
// every valid coordinate.
func (b *TileBounds) Contains(c tile.Coordinate) bool {
	if !c.Valid() {
		return false
	}
	if b == nil {
		return true
	}

	worldSize := math.Exp2(float64(c.Z))
	minX := math.Floor(lngX(b.west) * worldSize)
	minY := math.Floor(latY(b.north) * worldSize)
	maxX := math.Ceil(lngX(b.east) * worldSize)
	maxY := math.Ceil(latY(b.south) * worldSize)

	x, y := float64(c.X), float64(c.Y)
	return x >= minX && x < maxX && y >= minY && y < maxY
}

func lngX(lng float64) float64 {
	return (lng + 180) / 360
}

func latY(lat float64) float64 {
	lat = math.Max(-maxMercatorLatitude, math.Min(maxMercatorLatitude, lat))
	y := 180 / math.Pi * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return (180 - y) / 360
}
