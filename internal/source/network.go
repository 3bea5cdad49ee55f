package source

import (
	"fmt"
	"strings"

	"github.com/jaennil/guide_helper/tilesource/internal/dispatcher"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
)

// NetworkSource resolves vector tiles through decode workers. Repeat operations
// on a tile are pinned to the worker that first parsed it.
type NetworkSource struct {
	lifecycle
	dispatcher dispatcher.Dispatcher
	camera     Camera
	templates  []string
}

var _ Source = (*NetworkSource)(nil)

// NewNetworkSource validates opts and returns a vector source. A tile size
// other than 512 is rejected.
func NewNetworkSource(opts Options, d dispatcher.Dispatcher, camera Camera, l logger.Logger) (*NetworkSource, error) {
	opts.Type = TypeVector
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if opts.TileSize != VectorTileSize {
		return nil, &ConfigError{
			Field: "TileSize",
			Err:   fmt.Errorf("%w: vector tiles must be %d, got %d", ErrUnsupportedTileSize, VectorTileSize, opts.TileSize),
		}
	}
	if d == nil {
		return nil, &ConfigError{Field: "Dispatcher", Err: fmt.Errorf("%w: no dispatcher", ErrInvalidOptions)}
	}

	templates := opts.Tiles
	if len(templates) == 0 {
		if !strings.Contains(opts.URL, "{z}") {
			return nil, &ConfigError{Field: "URL", Err: fmt.Errorf("%w: %q is not a tile URL template", ErrInvalidOptions, opts.URL)}
		}
		templates = []string{opts.URL}
	}
	if camera == nil {
		camera = StaticCamera{}
	}

	l.Info("vector source created", "source", opts.ID, "templates", len(templates), "maxzoom", *opts.MaxZoom)

	return &NetworkSource{
		lifecycle:  newLifecycle(opts, l),
		dispatcher: d,
		camera:     camera,
		templates:  templates,
	}, nil
}

func (s *NetworkSource) LoadTile(t *tile.Tile, cb tile.Callback) {
	if t.State() == tile.StateLoading {
		s.deferReload(t, cb)
		return
	}

	// Only loaded and errored tiles have parse state on their worker.
	worker, pinned := t.Worker()
	op := dispatcher.OpReloadTile
	if !pinned || t.State() == tile.StateUnloaded || t.State() == tile.StateExpired {
		op = dispatcher.OpLoadTile
	}

	req, span, ok := s.begin(t, cb, op)
	if !ok {
		return
	}

	params := s.params(t)
	reply := func(result any, err error) {
		s.complete(t, req, span, err, func() error {
			return s.apply(t, result)
		}, s.LoadTile)
	}

	if op == dispatcher.OpLoadTile {
		worker = s.dispatcher.Send(op, params, reply)
		t.SetWorker(worker)
	} else {
		s.dispatcher.SendTo(worker, op, params, reply)
	}

	ref := s.ref(t)
	req.OnAbort(func() {
		s.dispatcher.SendTo(worker, dispatcher.OpAbortTile, ref, nil)
	})
}

func (s *NetworkSource) params(t *tile.Tile) dispatcher.LoadParams {
	overscale := t.Coord.OverscaleFactor(s.maxZoom())
	view := s.camera.ViewState(t.Coord)

	return dispatcher.LoadParams{
		URL:                    t.Coord.URL(s.templates, s.maxZoom(), s.opts.Scheme),
		UID:                    t.UID,
		Coord:                  t.Coord,
		Zoom:                   t.Coord.Z,
		TileSize:               s.opts.TileSize * int(overscale),
		Type:                   string(s.opts.Type),
		Source:                 s.opts.ID,
		Overscaling:            overscale,
		Angle:                  view.Angle,
		Pitch:                  view.Pitch,
		CameraToCenterDistance: view.CameraToCenterDistance,
		CameraToTileDistance:   view.CameraToTileDistance,
		ShowCollisionBoxes:     view.ShowCollisionBoxes,
	}
}

func (s *NetworkSource) ref(t *tile.Tile) dispatcher.TileRef {
	return dispatcher.TileRef{
		UID:    t.UID,
		Type:   string(s.opts.Type),
		Source: s.opts.ID,
	}
}

func (s *NetworkSource) apply(t *tile.Tile, result any) error {
	payload, ok := result.(*tile.Payload)
	if !ok || payload == nil {
		return fmt.Errorf("unexpected worker result %T", result)
	}

	t.Vector = payload
	if s.opts.RefreshExpiredTiles {
		t.SetExpiry(payload.CacheControl, payload.Expires, s.now())
	} else {
		t.Expiry = nil
	}
	return nil
}

// AbortTile sends abortTile to the tile's worker through the request's abort
// hook. Nothing is sent when no request is outstanding.
func (s *NetworkSource) AbortTile(t *tile.Tile) {
	s.abort(t)
}

// UnloadTile drops the decoded payload and tells the worker to forget the
// tile. The next load is dispatched afresh.
func (s *NetworkSource) UnloadTile(t *tile.Tile) {
	s.unload(t)
	t.Vector = nil

	if worker, ok := t.Worker(); ok {
		s.dispatcher.SendTo(worker, dispatcher.OpRemoveTile, s.ref(t), nil)
		t.ClearWorker()
	}
}
