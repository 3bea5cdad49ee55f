package source

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/jaennil/guide_helper/tilesource/internal/imaging"
	"github.com/jaennil/guide_helper/tilesource/internal/repository/store"
	"github.com/jaennil/guide_helper/tilesource/internal/texture"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
	"github.com/jaennil/guide_helper/tilesource/pkg/metrics"
)

// LocalSource resolves raster tiles from a local tile store for offline use.
// Rows are stored south-up, so lookups flip the view's north-up row.
type LocalSource struct {
	lifecycle
	store     store.TileStore
	uploader  *texture.Uploader
	scheduler Scheduler
	format    imaging.Format
}

var _ Source = (*LocalSource)(nil)

// NewLocalSource returns a raster source reading st. The store must be
// reachable; there is no network fallback.
func NewLocalSource(ctx context.Context, opts Options, st store.TileStore, uploader *texture.Uploader, scheduler Scheduler, l logger.Logger) (*LocalSource, error) {
	opts.Type = TypeRasterLocal
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	format, err := imaging.ParseFormat(opts.ImageFormat)
	if err != nil {
		return nil, &ConfigError{Field: "ImageFormat", Err: err}
	}

	if st == nil {
		return nil, &ConfigError{Field: "Tiles", Err: ErrStorageUnavailable}
	}
	if err := st.Ping(ctx); err != nil {
		return nil, &ConfigError{Field: "Tiles", Err: fmt.Errorf("%w: %w", ErrStorageUnavailable, err)}
	}
	if uploader == nil {
		return nil, &ConfigError{Field: "Uploader", Err: fmt.Errorf("%w: no texture uploader", ErrInvalidOptions)}
	}
	if scheduler == nil {
		return nil, &ConfigError{Field: "Scheduler", Err: fmt.Errorf("%w: no scheduler", ErrInvalidOptions)}
	}

	l.Info("local source created", "source", opts.ID, "store", st.Driver(), "format", format)

	return &LocalSource{
		lifecycle: newLifecycle(opts, l),
		store:     st,
		uploader:  uploader,
		scheduler: scheduler,
		format:    format,
	}, nil
}

// LoadTile looks the tile up off the owning goroutine and uploads the decoded
// image once the lookup is posted back. Loaded tiles are looked up again.
func (s *LocalSource) LoadTile(t *tile.Tile, cb tile.Callback) {
	if t.State() == tile.StateLoading {
		s.deferReload(t, cb)
		return
	}

	req, span, ok := s.begin(t, cb, "lookup")
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	req.OnAbort(cancel)

	key := store.TileKey{Zoom: t.Coord.Z, Column: t.Coord.X, Row: t.Coord.FlipY()}
	go func() {
		img, err := s.lookup(ctx, key)
		posted := s.scheduler.Post(func() {
			cancel()
			s.complete(t, req, span, err, func() error {
				return s.apply(t, img)
			}, s.LoadTile)
		})
		if !posted {
			cancel()
			span.End()
			s.logger.Warn("dropping tile lookup, owner loop stopped", "source", s.opts.ID, "tile", t.Coord)
		}
	}()
}

// lookup returns the decoded tile at k, or the transparent placeholder when
// the store has no such row.
func (s *LocalSource) lookup(ctx context.Context, k store.TileKey) (*image.RGBA, error) {
	start := time.Now()
	data, exists, err := s.store.Get(ctx, k)
	metrics.StoreLookupDuration.WithLabelValues(s.store.Driver()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreErrors.WithLabelValues(s.store.Driver(), "get").Inc()
		return nil, fmt.Errorf("store lookup %v: %w", k, err)
	}

	if !exists || len(data) == 0 {
		metrics.PlaceholderTiles.WithLabelValues(s.opts.ID).Inc()
		s.logger.Debug("no stored tile, using placeholder", "source", s.opts.ID, "key", k)
		return imaging.Placeholder(), nil
	}

	img, sniffed, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	if !s.format.Matches(sniffed) {
		s.logger.Debug("stored tile encoding differs from source format", "source", s.opts.ID, "key", k, "format", s.format, "stored", sniffed)
	}
	return img, nil
}

// apply uploads img into the tile's texture, reusing it when one exists.
func (s *LocalSource) apply(t *tile.Tile, img *image.RGBA) error {
	h, err := s.uploader.Upload(t.Texture, img)
	if err != nil {
		return err
	}
	t.Texture = h
	t.Expiry = nil
	return nil
}

// AbortTile cancels the store lookup of the outstanding request.
func (s *LocalSource) AbortTile(t *tile.Tile) {
	s.abort(t)
}

// UnloadTile releases the tile's texture. An outstanding lookup is aborted and
// its result discarded when it arrives.
func (s *LocalSource) UnloadTile(t *tile.Tile) {
	s.unload(t)

	if t.Texture != 0 {
		s.uploader.Release(t.Texture)
		t.Texture = 0
	}
}

// Close releases the store.
func (s *LocalSource) Close() error {
	return s.store.Close()
}
