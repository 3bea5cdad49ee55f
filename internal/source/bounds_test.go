package source

import (
	"testing"

	"github.com/jaennil/guide_helper/tilesource/internal/tile"
)

func TestTileBoundsContains(t *testing.T) {
	var unbounded *TileBounds
	if !unbounded.Contains(tile.Coordinate{Z: 3, X: 7, Y: 7}) {
		t.Error("nil bounds must contain every valid tile")
	}
	if unbounded.Contains(tile.Coordinate{Z: 3, X: 8, Y: 0}) {
		t.Error("nil bounds must reject invalid tiles")
	}

	// roughly Moscow
	b := NewTileBounds(&[4]float64{37.3, 55.5, 37.9, 56.0})
	tests := []struct {
		c    tile.Coordinate
		want bool
	}{
		{tile.Coordinate{Z: 0, X: 0, Y: 0}, true},
		{tile.Coordinate{Z: 10, X: 618, Y: 320}, true},
		{tile.Coordinate{Z: 10, X: 600, Y: 320}, false},
		{tile.Coordinate{Z: 10, X: 618, Y: 400}, false},
	}
	for _, tt := range tests {
		if got := b.Contains(tt.c); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.c, got, tt.want)
		}
	}

	world := NewTileBounds(&[4]float64{-180, -90, 180, 90})
	for _, c := range []tile.Coordinate{{Z: 4, X: 0, Y: 0}, {Z: 4, X: 15, Y: 15}} {
		if !world.Contains(c) {
			t.Errorf("world bounds must contain %v", c)
		}
	}
}
