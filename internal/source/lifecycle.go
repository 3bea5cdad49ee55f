package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
	"github.com/jaennil/guide_helper/tilesource/pkg/metrics"
	"github.com/jaennil/guide_helper/tilesource/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// lifecycle is the part of request handling both backends share: starting a
// request, parking reloads and settling completions.
type lifecycle struct {
	opts   Options
	bounds *TileBounds
	logger logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func newLifecycle(opts Options, l logger.Logger) lifecycle {
	return lifecycle{
		opts:   opts,
		bounds: NewTileBounds(opts.Bounds),
		logger: l,
		tracer: telemetry.Tracer(),
		now:    time.Now,
	}
}

func (lc *lifecycle) maxZoom() uint32 {
	return *lc.opts.MaxZoom
}

func (lc *lifecycle) HasTile(c tile.Coordinate) bool {
	return lc.bounds.Contains(c)
}

func (lc *lifecycle) Serialize() Options {
	opts := lc.opts
	opts.Tiles = append([]string(nil), lc.opts.Tiles...)
	if lc.opts.Bounds != nil {
		b := *lc.opts.Bounds
		opts.Bounds = &b
	}
	if lc.opts.MaxZoom != nil {
		opts.MaxZoom = Zoom(*lc.opts.MaxZoom)
	}
	return opts
}

// begin moves t into loading for a new request of the given kind.
func (lc *lifecycle) begin(t *tile.Tile, cb tile.Callback, kind string) (*tile.Request, trace.Span, bool) {
	req, err := t.Begin(cb)
	if err != nil {
		lc.logger.Error("cannot start tile request", "source", lc.opts.ID, "tile", t.Coord, "error", err)
		resolve(cb, fmt.Errorf("%w: tile %v: %w", ErrLoad, t.Coord, err))
		return nil, nil, false
	}

	metrics.TileRequests.WithLabelValues(lc.opts.ID, kind).Inc()
	_, span := lc.tracer.Start(context.Background(), "tile."+kind,
		trace.WithAttributes(
			attribute.String("source.id", lc.opts.ID),
			attribute.String("source.type", string(lc.opts.Type)),
			attribute.String("tile.coord", t.Coord.String()),
			attribute.Int64("tile.request", int64(req.Seq())),
		),
	)
	lc.logger.Debug("tile request started", "source", lc.opts.ID, "tile", t.Coord, "kind", kind, "request", req.Seq())
	return req, span, true
}

// deferReload parks cb until the outstanding request of t settles. A callback
// parked earlier is superseded and resolved with nil.
func (lc *lifecycle) deferReload(t *tile.Tile, cb tile.Callback) {
	metrics.TileReloadsDeferred.WithLabelValues(lc.opts.ID).Inc()
	lc.logger.Debug("reload deferred behind in-flight request", "source", lc.opts.ID, "tile", t.Coord)

	if replaced := t.Defer(cb); replaced != nil {
		replaced(nil)
	}
}

// abort marks the outstanding request of t as abandoned. Reloads parked before
// the abort are abandoned with it; reloads parked afterwards still run once the
// request settles.
func (lc *lifecycle) abort(t *tile.Tile) bool {
	if !t.Abort() {
		return false
	}
	metrics.TileAborts.WithLabelValues(lc.opts.ID).Inc()
	lc.logger.Debug("tile request aborted", "source", lc.opts.ID, "tile", t.Coord)

	resolve(t.TakePendingReload(), nil)
	return true
}

// unload aborts an outstanding request or returns a settled tile to unloaded.
// Backend specific resources are released by the caller.
func (lc *lifecycle) unload(t *tile.Tile) {
	metrics.TileUnloads.WithLabelValues(lc.opts.ID).Inc()

	if t.State() == tile.StateLoading {
		lc.abort(t)
		// A reload queued after an earlier abort is dropped too.
		resolve(t.TakePendingReload(), nil)
		return
	}
	if err := t.Unload(); err != nil {
		lc.logger.Error("unload failed", "source", lc.opts.ID, "tile", t.Coord, "error", err)
	}
}

// complete settles req with the backend outcome. apply hands successful data to
// t and runs only when the request was neither aborted nor failed. A reload
// parked during the request is started afterwards through load.
func (lc *lifecycle) complete(
	t *tile.Tile,
	req *tile.Request,
	span trace.Span,
	err error,
	apply func() error,
	load func(*tile.Tile, tile.Callback),
) {
	defer span.End()

	if !t.Owns(req) {
		lc.logger.Debug("ignoring stale completion", "source", lc.opts.ID, "tile", t.Coord, "request", req.Seq())
		span.SetAttributes(attribute.String("tile.outcome", "stale"))
		return
	}

	res := tile.ResultLoaded
	var cbErr error
	switch {
	case req.Aborted():
		res = tile.ResultAborted
	case err != nil:
		res = tile.ResultErrored
		cbErr = fmt.Errorf("%w: tile %v: %w", ErrLoad, t.Coord, err)
	default:
		if err := apply(); err != nil {
			res = tile.ResultErrored
			cbErr = fmt.Errorf("%w: tile %v: %w", ErrLoad, t.Coord, err)
		}
	}

	cb, err := t.Settle(req, res)
	if err != nil {
		lc.logger.Error("cannot settle tile request", "source", lc.opts.ID, "tile", t.Coord, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	metrics.TileCompletions.WithLabelValues(lc.opts.ID, res.String()).Inc()
	span.SetAttributes(attribute.String("tile.outcome", res.String()))
	if cbErr != nil {
		lc.logger.Warn("tile load failed", "source", lc.opts.ID, "tile", t.Coord, "error", cbErr)
		span.RecordError(cbErr)
		span.SetStatus(codes.Error, cbErr.Error())
	} else {
		lc.logger.Debug("tile request settled", "source", lc.opts.ID, "tile", t.Coord, "outcome", res)
	}

	pending := t.TakePendingReload()
	resolve(cb, cbErr)
	if pending != nil {
		load(t, pending)
	}
}

func resolve(cb tile.Callback, err error) {
	if cb != nil {
		cb(err)
	}
}
