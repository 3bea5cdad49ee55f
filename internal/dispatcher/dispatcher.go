// Package dispatcher routes tile operations to decode workers and delivers
// their replies back to the owning event loop.
package dispatcher

import (
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
)

// Operation names understood by tile workers.
const (
	OpLoadTile   = "loadTile"
	OpReloadTile = "reloadTile"
	OpAbortTile  = "abortTile"
	OpRemoveTile = "removeTile"
)

// LoadParams is the payload of loadTile and reloadTile.
type LoadParams struct {
	URL                    string
	UID                    uint64
	Coord                  tile.Coordinate
	Zoom                   uint32
	TileSize               int
	Type                   string
	Source                 string
	Overscaling            uint32
	Angle                  float64
	Pitch                  float64
	CameraToCenterDistance float64
	CameraToTileDistance   float64
	ShowCollisionBoxes     bool
}

// TileRef is the payload of abortTile and removeTile.
type TileRef struct {
	UID    uint64
	Type   string
	Source string
}

// Callback receives a worker reply on the owner's goroutine.
type Callback func(result any, err error)

// Dispatcher sends operations to workers.
type Dispatcher interface {
	// Send delivers op to a worker of the dispatcher's choosing and returns
	// its id so later operations on the same tile can be pinned to it.
	Send(op string, payload any, cb Callback) tile.WorkerID
	// SendTo delivers op to worker id.
	SendTo(id tile.WorkerID, op string, payload any, cb Callback)
}

// Reply answers a message. Only the first call has an effect.
type Reply func(result any, err error)

// Handler executes operations inside a worker. Handle must not block: long
// running work replies later from its own goroutine.
type Handler interface {
	Handle(op string, payload any, reply Reply)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(op string, payload any, reply Reply)

func (f HandlerFunc) Handle(op string, payload any, reply Reply) {
	f(op, payload, reply)
}

// Poster schedules a function on the owner's goroutine.
type Poster interface {
	Post(fn func()) bool
}
