package tile_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
)

func TestFlipY(t *testing.T) {
	for z := range uint32(9) {
		for y := range uint32(1) << z {
			c := tile.Coordinate{Z: z, X: 0, Y: y}
			row := c.FlipY()
			if want := (uint32(1) << z) - 1 - y; row != want {
				t.Fatalf("FlipY(%v) = %d, want %d", c, row, want)
			}
			back := tile.Coordinate{Z: z, X: 0, Y: row}.FlipY()
			if back != y {
				t.Fatalf("FlipY(FlipY(%v)) = %d, want %d", c, back, y)
			}
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		c    tile.Coordinate
		want bool
	}{
		{tile.Coordinate{Z: 0, X: 0, Y: 0}, true},
		{tile.Coordinate{Z: 0, X: 1, Y: 0}, false},
		{tile.Coordinate{Z: 5, X: 31, Y: 31}, true},
		{tile.Coordinate{Z: 5, X: 32, Y: 3}, false},
		{tile.Coordinate{Z: 32, X: 0, Y: 0}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestOverscaleFactor(t *testing.T) {
	tests := []struct {
		z, maxZoom, want uint32
	}{
		{10, 14, 1},
		{14, 14, 1},
		{15, 14, 2},
		{17, 14, 8},
	}
	for _, tt := range tests {
		c := tile.Coordinate{Z: tt.z}
		if got := c.OverscaleFactor(tt.maxZoom); got != tt.want {
			t.Errorf("OverscaleFactor(z=%d, maxzoom=%d) = %d, want %d", tt.z, tt.maxZoom, got, tt.want)
		}
	}
}

func TestID(t *testing.T) {
	tests := []struct {
		c    tile.Coordinate
		want uint64
	}{
		{tile.Coordinate{Z: 0, X: 0, Y: 0}, 0},
		{tile.Coordinate{Z: 1, X: 0, Y: 0}, 1},
		{tile.Coordinate{Z: 1, X: 0, Y: 1}, 2},
		{tile.Coordinate{Z: 1, X: 1, Y: 1}, 3},
		{tile.Coordinate{Z: 1, X: 1, Y: 0}, 4},
		{tile.Coordinate{Z: 2, X: 0, Y: 0}, 5},
	}
	for _, tt := range tests {
		got, err := tt.c.ID()
		if err != nil {
			t.Fatalf("%v.ID(): %v", tt.c, err)
		}
		if got != tt.want {
			t.Errorf("%v.ID() = %d, want %d", tt.c, got, tt.want)
		}
	}

	seen := make(map[uint64]tile.Coordinate)
	for z := range uint32(7) {
		for x := range uint32(1) << z {
			for y := range uint32(1) << z {
				c := tile.Coordinate{Z: z, X: x, Y: y}
				id, err := c.ID()
				if err != nil {
					t.Fatalf("%v.ID(): %v", c, err)
				}
				if prev, ok := seen[id]; ok {
					t.Fatalf("%v and %v share id %d", prev, c, id)
				}
				seen[id] = c
			}
		}
	}
}

func TestIDRejectsInvalidCoordinate(t *testing.T) {
	for _, c := range []tile.Coordinate{{Z: 0, X: 1, Y: 0}, {Z: 2, X: 0, Y: 4}, {Z: 40}} {
		if id, err := c.ID(); !errors.Is(err, tile.ErrInvalidCoordinate) {
			t.Errorf("%v.ID() = %d, %v; want ErrInvalidCoordinate", c, id, err)
		}
	}
}

func TestQuadkeyAndBBox(t *testing.T) {
	if got := (tile.Coordinate{Z: 3, X: 3, Y: 5}).Quadkey(); got != "213" {
		t.Errorf("Quadkey() = %q, want %q", got, "213")
	}
	if got := (tile.Coordinate{}).Quadkey(); got != "" {
		t.Errorf("Quadkey() of the root tile = %q, want empty", got)
	}

	want := "-20037508.342789244,-20037508.342789244,20037508.342789244,20037508.342789244"
	if got := (tile.Coordinate{}).BBox3857(); got != want {
		t.Errorf("BBox3857() = %q, want %q", got, want)
	}
}

func TestURL(t *testing.T) {
	templates := []string{
		"https://a.example.com/{z}/{x}/{y}.pbf",
		"https://b.example.com/{z}/{x}/{y}.pbf",
	}

	tests := []struct {
		name    string
		c       tile.Coordinate
		scheme  tile.Scheme
		tmpl    []string
		maxZoom uint32
		want    string
	}{
		{"xyz", tile.Coordinate{Z: 10, X: 512, Y: 300}, tile.SchemeXYZ, templates, 14, "https://a.example.com/10/512/300.pbf"},
		{"tms flips row", tile.Coordinate{Z: 10, X: 512, Y: 300}, tile.SchemeTMS, templates, 14, "https://a.example.com/10/512/723.pbf"},
		{"second template", tile.Coordinate{Z: 10, X: 513, Y: 300}, tile.SchemeXYZ, templates, 14, "https://b.example.com/10/513/300.pbf"},
		{"overscaled uses parent", tile.Coordinate{Z: 16, X: 4, Y: 8}, tile.SchemeXYZ, templates, 14, "https://b.example.com/14/1/2.pbf"},
		{"extra placeholders", tile.Coordinate{Z: 3, X: 3, Y: 5}, tile.SchemeXYZ, []string{"q={quadkey}&p={prefix}"}, 22, "q=213&p=35"},
		{"no templates", tile.Coordinate{Z: 1}, tile.SchemeXYZ, nil, 22, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.URL(tt.tmpl, tt.maxZoom, tt.scheme)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("URL() mismatch (-want+got):\n%v", diff)
			}
		})
	}
}
