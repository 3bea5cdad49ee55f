// Package source resolves tiles through one of two backends: a vector backend
// that dispatches work to decode workers and a raster backend reading a local
// tile store. Both drive the same per-tile lifecycle.
//
// Every method of a Source must be called on the goroutine of the Scheduler
// the source was built with. Completion callbacks run on that goroutine too.
package source

import (
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
)

// Source is the capability set the owning view uses.
type Source interface {
	// LoadTile requests t. cb is invoked exactly once: with nil on success,
	// abort or supersession and with an error wrapping ErrLoad on failure.
	LoadTile(t *tile.Tile, cb tile.Callback)
	// AbortTile abandons the outstanding request of t, if any. The state of t
	// changes only when the backend reports the request settled.
	AbortTile(t *tile.Tile)
	// UnloadTile releases decoded data and backend resources held for t.
	UnloadTile(t *tile.Tile)
	// HasTile reports whether the source may have data for c.
	HasTile(c tile.Coordinate) bool
	// Serialize returns the options the source was built with.
	Serialize() Options
}

// Scheduler runs functions on the goroutine that owns the tiles.
type Scheduler interface {
	Post(fn func()) bool
}

// ViewState is the camera state decode workers need for symbol placement.
type ViewState struct {
	Angle                  float64
	Pitch                  float64
	CameraToCenterDistance float64
	CameraToTileDistance   float64
	ShowCollisionBoxes     bool
}

// Camera reports the view state at the time a tile is requested.
type Camera interface {
	ViewState(c tile.Coordinate) ViewState
}

// StaticCamera reports the same view state for every tile.
type StaticCamera ViewState

func (s StaticCamera) ViewState(tile.Coordinate) ViewState {
	return ViewState(s)
}
