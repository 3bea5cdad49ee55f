// Package store holds the local tile stores behind the raster-local source.
// Tiles are keyed the way MBTiles keys them: zoom, column and a south-up row.
package store

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownDriver = errors.New("store: unknown driver")

type TileKey struct {
	Zoom   uint32
	Column uint32
	Row    uint32
}

func (k TileKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Zoom, k.Column, k.Row)
}

type TileValue []byte

// TileStore is a local tile database. A missing tile is reported as
// exists == false with a nil error.
type TileStore interface {
	Get(ctx context.Context, k TileKey) (TileValue, bool, error)
	Set(ctx context.Context, k TileKey, v TileValue) error
	Ping(ctx context.Context) error
	Close() error
	Driver() string
}
