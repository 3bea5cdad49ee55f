package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"slices"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/tilesource/internal/source"
	"github.com/jaennil/guide_helper/tilesource/internal/texture"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
	"github.com/jaennil/guide_helper/tilesource/pkg/metrics"
	"github.com/jaennil/guide_helper/tilesource/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrInvalidCoordinate = errors.New("invalid tile coordinate")
	ErrOutOfBounds       = errors.New("tile outside source bounds")
	ErrNotActive         = errors.New("tile is not active")
	ErrAborted           = errors.New("tile request aborted")
	ErrNoData            = errors.New("tile has no data")
)

const (
	ContentTypePNG    = "image/png"
	ContentTypeVector = "application/x-protobuf"
)

// Poster runs functions on the goroutine that owns the tiles.
type Poster interface {
	Do(ctx context.Context, fn func()) error
}

// PixelReader reads texture contents back.
type PixelReader interface {
	ReadPixels(h texture.Handle) (*image.RGBA, bool)
}

// TileData is a snapshot of a loaded tile.
type TileData struct {
	Coord       tile.Coordinate
	State       tile.State
	ContentType string
	Data        []byte
	ExpiresAt   time.Time
}

// TileStatus describes one active tile.
type TileStatus struct {
	Coord   string `json:"coord"`
	State   string `json:"state"`
	Texture uint32 `json:"texture,omitempty"`
	Loading bool   `json:"loading"`
}

type result struct {
	data *TileData
	err  error
}

// waitSet holds the callers answered by one LoadTile call.
type waitSet struct {
	chans []chan result
}

// tileWaits tracks the wait sets of a tile: the one answered by the
// outstanding request and the one answered by the reload queued behind it.
type tileWaits struct {
	inflight *waitSet
	queued   *waitSet
}

// TileUseCase is the owning view: it keeps one Tile per active coordinate and
// drives the configured source. Tiles are only touched on the loop.
type TileUseCase struct {
	source source.Source
	loop   Poster
	pixels PixelReader
	logger logger.Logger
	now    func() time.Time

	tiles map[tile.Coordinate]*tile.Tile
	waits map[*tile.Tile]*tileWaits
}

func NewTileUseCase(src source.Source, loop Poster, pixels PixelReader, l logger.Logger) *TileUseCase {
	return &TileUseCase{
		source: src,
		loop:   loop,
		pixels: pixels,
		logger: l,
		now:    time.Now,
		tiles:  make(map[tile.Coordinate]*tile.Tile),
		waits:  make(map[*tile.Tile]*tileWaits),
	}
}

// Acquire returns the tile at c, loading it first when it is not loaded or
// has expired.
func (uc *TileUseCase) Acquire(ctx context.Context, c tile.Coordinate) (*TileData, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "TileUseCase.Acquire")
	defer span.End()
	span.SetAttributes(attribute.String("tile.coord", c.String()))

	if !c.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCoordinate, c)
	}
	if !uc.source.HasTile(c) {
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, c)
	}

	ch := make(chan result, 1)
	err := uc.loop.Do(ctx, func() {
		t, ok := uc.tiles[c]
		if !ok {
			var err error
			if t, err = tile.New(c); err != nil {
				ch <- result{err: fmt.Errorf("%w: %w", ErrInvalidCoordinate, err)}
				return
			}
			uc.tiles[c] = t
			uc.updateGauge()
		}

		if t.State() == tile.StateLoaded && t.Expired(uc.now()) {
			if err := t.Expire(); err != nil {
				uc.logger.Error("expire failed", "tile", c, "error", err)
			}
		}
		switch t.State() {
		case tile.StateLoaded:
			ch <- uc.snapshot(t)
		case tile.StateLoading:
			uc.join(t, ch)
		default:
			uc.start(t, ch)
		}
	})
	if err != nil {
		return nil, err
	}

	return uc.wait(ctx, ch)
}

// Reload requests an active tile again and returns the reloaded data. A
// reload of a tile that is loading runs after the in-flight request.
func (uc *TileUseCase) Reload(ctx context.Context, c tile.Coordinate) (*TileData, error) {
	ch := make(chan result, 1)
	var active bool
	err := uc.loop.Do(ctx, func() {
		t, ok := uc.tiles[c]
		if !ok {
			return
		}
		active = true
		if t.State() == tile.StateLoading {
			uc.enqueue(t, ch)
		} else {
			uc.start(t, ch)
		}
	})
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("%w: %v", ErrNotActive, c)
	}

	return uc.wait(ctx, ch)
}

// Abort abandons the outstanding request of an active tile and returns the
// state the tile is in right after.
func (uc *TileUseCase) Abort(ctx context.Context, c tile.Coordinate) (tile.State, error) {
	var (
		state  tile.State
		active bool
	)
	err := uc.loop.Do(ctx, func() {
		t, ok := uc.tiles[c]
		if !ok {
			return
		}
		active = true
		uc.source.AbortTile(t)
		state = t.State()
	})
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, fmt.Errorf("%w: %v", ErrNotActive, c)
	}
	return state, nil
}

// Release unloads an active tile and forgets it.
func (uc *TileUseCase) Release(ctx context.Context, c tile.Coordinate) error {
	var active bool
	err := uc.loop.Do(ctx, func() {
		t, ok := uc.tiles[c]
		if !ok {
			return
		}
		active = true
		uc.source.UnloadTile(t)
		delete(uc.tiles, c)
		uc.updateGauge()
	})
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("%w: %v", ErrNotActive, c)
	}
	return nil
}

// RefreshExpired marks tiles whose freshness ran out at now as expired and
// reloads them. It returns the number of reloads started.
func (uc *TileUseCase) RefreshExpired(ctx context.Context, now time.Time) (int, error) {
	if !uc.source.Serialize().RefreshExpiredTiles {
		return 0, nil
	}

	n := 0
	err := uc.loop.Do(ctx, func() {
		for _, t := range uc.tiles {
			if t.State() == tile.StateLoading || !t.Expired(now) {
				continue
			}
			if err := t.Expire(); err != nil {
				uc.logger.Error("expire failed", "tile", t.Coord, "error", err)
				continue
			}
			uc.start(t, nil)
			n++
		}
	})
	if n > 0 {
		uc.logger.Info("refreshing expired tiles", "count", n)
	}
	return n, err
}

// Status lists the active tiles.
func (uc *TileUseCase) Status(ctx context.Context) ([]TileStatus, error) {
	var out []TileStatus
	err := uc.loop.Do(ctx, func() {
		out = make([]TileStatus, 0, len(uc.tiles))
		for c, t := range uc.tiles {
			out = append(out, TileStatus{
				Coord:   c.String(),
				State:   t.State().String(),
				Texture: uint32(t.Texture),
				Loading: t.Outstanding() != nil,
			})
		}
		slices.SortFunc(out, func(a, b TileStatus) int {
			return strings.Compare(a.Coord, b.Coord)
		})
	})
	return out, err
}

func (uc *TileUseCase) Source() source.Options {
	return uc.source.Serialize()
}

func (uc *TileUseCase) waitsFor(t *tile.Tile) *tileWaits {
	w, ok := uc.waits[t]
	if !ok {
		w = &tileWaits{}
		uc.waits[t] = w
	}
	return w
}

// start issues a request for a tile that is not loading. ch may be nil.
func (uc *TileUseCase) start(t *tile.Tile, ch chan result) {
	ws := &waitSet{}
	if ch != nil {
		ws.chans = append(ws.chans, ch)
	}
	uc.waitsFor(t).inflight = ws
	uc.source.LoadTile(t, uc.done(t, ws))
}

// join waits for the outstanding request of a loading tile.
func (uc *TileUseCase) join(t *tile.Tile, ch chan result) {
	w := uc.waitsFor(t)
	if w.inflight == nil {
		w.inflight = &waitSet{}
	}
	w.inflight.chans = append(w.inflight.chans, ch)
}

// enqueue waits for a reload that starts once the outstanding request of t
// settles. A reload already queued has not started yet, so ch joins it.
func (uc *TileUseCase) enqueue(t *tile.Tile, ch chan result) {
	w := uc.waitsFor(t)
	if w.queued != nil {
		w.queued.chans = append(w.queued.chans, ch)
		return
	}
	w.queued = &waitSet{chans: []chan result{ch}}
	uc.source.LoadTile(t, uc.done(t, w.queued))
}

// done returns the completion callback of the LoadTile call answering ws. A
// nil outcome while t is still loading means the call was dropped before it
// ran, e.g. a queued reload abandoned by an abort; its callers then wait for
// the outstanding request instead.
func (uc *TileUseCase) done(t *tile.Tile, ws *waitSet) tile.Callback {
	return func(err error) {
		w := uc.waitsFor(t)

		if err == nil && t.State() == tile.StateLoading {
			if w.queued == ws {
				w.queued = nil
			}
			if w.inflight != nil && w.inflight != ws {
				w.inflight.chans = append(w.inflight.chans, ws.chans...)
				return
			}
			uc.answer(ws, result{err: fmt.Errorf("%w: %v", ErrAborted, t.Coord)})
			return
		}

		// The queued reload is started right after this callback returns.
		if w.inflight == ws {
			w.inflight, w.queued = w.queued, nil
		}
		if w.inflight == nil && w.queued == nil {
			delete(uc.waits, t)
		}

		switch {
		case err != nil:
			uc.answer(ws, result{err: err})
		case t.State() == tile.StateUnloaded:
			uc.answer(ws, result{err: fmt.Errorf("%w: %v", ErrAborted, t.Coord)})
		case len(ws.chans) > 0:
			uc.answer(ws, uc.snapshot(t))
		}
	}
}

func (uc *TileUseCase) answer(ws *waitSet, res result) {
	for _, ch := range ws.chans {
		ch <- res
	}
	ws.chans = nil
}

// snapshot copies the data of a loaded tile. It runs on the loop.
func (uc *TileUseCase) snapshot(t *tile.Tile) result {
	d := &TileData{Coord: t.Coord, State: t.State()}
	if t.Expiry != nil {
		d.ExpiresAt = t.Expiry.ExpiresAt
	}

	switch {
	case t.Vector != nil:
		d.ContentType = ContentTypeVector
		d.Data = append([]byte(nil), t.Vector.Data...)
	case t.Texture != 0 && uc.pixels != nil:
		img, ok := uc.pixels.ReadPixels(t.Texture)
		if !ok {
			return result{err: fmt.Errorf("%w: %v: texture %d unreadable", ErrNoData, t.Coord, t.Texture)}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return result{err: fmt.Errorf("encode tile %v: %w", t.Coord, err)}
		}
		d.ContentType = ContentTypePNG
		d.Data = buf.Bytes()
	default:
		return result{err: fmt.Errorf("%w: %v", ErrNoData, t.Coord)}
	}
	return result{data: d}
}

func (uc *TileUseCase) wait(ctx context.Context, ch <-chan result) (*TileData, error) {
	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (uc *TileUseCase) updateGauge() {
	metrics.ActiveTiles.WithLabelValues(uc.source.Serialize().ID).Set(float64(len(uc.tiles)))
}
