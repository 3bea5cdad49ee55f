// Package worker implements the decode side of the dispatcher protocol for
// vector tiles.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaennil/guide_helper/tilesource/internal/dispatcher"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
)

type tileKey struct {
	source string
	uid    uint64
}

type inflight struct {
	cancel context.CancelFunc
}

// VectorWorker keeps per-tile state for one worker: in-flight loads, which
// can be aborted, and the raw bytes of loaded tiles, which reloads reuse
// instead of fetching again.
type VectorWorker struct {
	id      tile.WorkerID
	fetcher Fetcher
	logger  logger.Logger

	mu      sync.Mutex
	loading map[tileKey]*inflight
	loaded  map[tileKey]*Response
}

func NewVectorWorker(id tile.WorkerID, fetcher Fetcher, l logger.Logger) *VectorWorker {
	return &VectorWorker{
		id:      id,
		fetcher: fetcher,
		logger:  l,
		loading: make(map[tileKey]*inflight),
		loaded:  make(map[tileKey]*Response),
	}
}

var _ dispatcher.Handler = (*VectorWorker)(nil)

func (w *VectorWorker) Handle(op string, payload any, reply dispatcher.Reply) {
	switch op {
	case dispatcher.OpLoadTile, dispatcher.OpReloadTile:
		params, ok := payload.(dispatcher.LoadParams)
		if !ok {
			reply(nil, fmt.Errorf("worker %d: %s: unexpected payload %T", w.id, op, payload))
			return
		}
		if op == dispatcher.OpReloadTile && w.reload(params, reply) {
			return
		}
		w.load(params, reply)

	case dispatcher.OpAbortTile:
		ref, ok := payload.(dispatcher.TileRef)
		if !ok {
			reply(nil, fmt.Errorf("worker %d: %s: unexpected payload %T", w.id, op, payload))
			return
		}
		w.abort(tileKey{ref.Source, ref.UID})
		reply(nil, nil)

	case dispatcher.OpRemoveTile:
		ref, ok := payload.(dispatcher.TileRef)
		if !ok {
			reply(nil, fmt.Errorf("worker %d: %s: unexpected payload %T", w.id, op, payload))
			return
		}
		w.remove(tileKey{ref.Source, ref.UID})
		reply(nil, nil)

	default:
		reply(nil, fmt.Errorf("worker %d: unknown operation %q", w.id, op))
	}
}

func (w *VectorWorker) load(params dispatcher.LoadParams, reply dispatcher.Reply) {
	key := tileKey{params.Source, params.UID}
	ctx, cancel := context.WithCancel(context.Background())
	job := &inflight{cancel: cancel}

	w.mu.Lock()
	if prev, ok := w.loading[key]; ok {
		prev.cancel()
	}
	w.loading[key] = job
	w.mu.Unlock()

	go func() {
		defer cancel()

		resp, err := w.fetcher.Fetch(ctx, params.URL)

		w.mu.Lock()
		if w.loading[key] == job {
			delete(w.loading, key)
		}
		if err == nil && ctx.Err() == nil {
			w.loaded[key] = resp
		}
		w.mu.Unlock()

		if err != nil {
			w.logger.Debug("tile load failed", "worker", w.id, "tile", params.Coord, "error", err)
			reply(nil, err)
			return
		}
		if ctx.Err() != nil {
			reply(nil, ctx.Err())
			return
		}

		reply(w.parse(resp))
	}()
}

// reload answers from the raw bytes kept for the tile; it reports false when
// there is nothing to reuse.
func (w *VectorWorker) reload(params dispatcher.LoadParams, reply dispatcher.Reply) bool {
	key := tileKey{params.Source, params.UID}

	w.mu.Lock()
	resp, ok := w.loaded[key]
	w.mu.Unlock()
	if !ok {
		return false
	}

	w.logger.Debug("reparsing loaded tile", "worker", w.id, "tile", params.Coord)
	reply(w.parse(resp))
	return true
}

func (w *VectorWorker) parse(resp *Response) (any, error) {
	data, layers, err := unwrap(resp.Data)
	if err != nil {
		return nil, err
	}
	return &tile.Payload{
		Data:         data,
		Layers:       layers,
		RawSize:      len(resp.Data),
		CacheControl: resp.CacheControl,
		Expires:      resp.Expires,
	}, nil
}

func (w *VectorWorker) abort(key tileKey) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if job, ok := w.loading[key]; ok {
		job.cancel()
		delete(w.loading, key)
		w.logger.Debug("tile load aborted", "worker", w.id, "uid", key.uid)
	}
}

func (w *VectorWorker) remove(key tileKey) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if job, ok := w.loading[key]; ok {
		job.cancel()
		delete(w.loading, key)
	}
	delete(w.loaded, key)
}

// Tiles returns the number of tiles with parsed state and in-flight loads.
func (w *VectorWorker) Tiles() (loaded, loading int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.loaded), len(w.loading)
}
