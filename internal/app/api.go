package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/tilesource/internal/dispatcher"
	"github.com/jaennil/guide_helper/tilesource/internal/eventloop"
	v1 "github.com/jaennil/guide_helper/tilesource/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/tilesource/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/tilesource/internal/repository/store"
	"github.com/jaennil/guide_helper/tilesource/internal/source"
	"github.com/jaennil/guide_helper/tilesource/internal/texture"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/jaennil/guide_helper/tilesource/internal/usecase"
	"github.com/jaennil/guide_helper/tilesource/internal/worker"
	"github.com/jaennil/guide_helper/tilesource/pkg/config"
	"github.com/jaennil/guide_helper/tilesource/pkg/http_server"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
	"github.com/jaennil/guide_helper/tilesource/pkg/telemetry"
)

const texturePoolSize = 64

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("starting tile source service", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, l)

	// Initialize OpenTelemetry if enabled
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	loop := eventloop.New(l)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(loopCtx)
	}()

	src, pixels, closeSource, err := newSource(ctx, cfg, loop, l)
	if err != nil {
		l.Fatal("failed to initialize tile source", "type", cfg.Source.Type, "error", err)
	}

	tileUseCase := usecase.NewTileUseCase(src, loop, pixels, l)

	if cfg.Source.RefreshExpiredTiles {
		go refreshExpired(ctx, tileUseCase, cfg.Source.RefreshInterval, l)
	}

	validate := validator.New()
	h := handler.NewHandler(validate, tileUseCase, cfg.Source.AcquireTimeout)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	l.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	l.Info("shutting down http server...", "address", httpServer.Addr)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	} else {
		l.Info("http server shutdown completed")
	}

	if err := closeSource(shutdownCtx); err != nil {
		l.Error("tile source shutdown failed", "error", err)
	}

	stopLoop()
	<-loopDone

	l.Info("application shutdown completed")
}

// newSource builds the configured backend. The returned close function
// releases what the backend owns.
func newSource(ctx context.Context, cfg *config.Config, loop *eventloop.Loop, l logger.Logger) (source.Source, usecase.PixelReader, func(context.Context) error, error) {
	opts := sourceOptions(cfg.Source)

	switch source.Type(cfg.Source.Type) {
	case source.TypeVector:
		fetcher := worker.NewHTTPFetcher(cfg.Upstream.Timeout, cfg.Upstream.UserAgent, cfg.Upstream.Referer, l)
		pool, err := dispatcher.NewPool(cfg.Worker.Count, func(id tile.WorkerID) dispatcher.Handler {
			return worker.NewVectorWorker(id, fetcher, l)
		}, loop, l)
		if err != nil {
			return nil, nil, nil, err
		}

		src, err := source.NewNetworkSource(opts, pool, source.StaticCamera{}, l)
		if err != nil {
			pool.Close(ctx)
			return nil, nil, nil, err
		}
		return src, nil, pool.Close, nil

	case source.TypeRasterLocal:
		var name string
		if len(cfg.Source.Tiles) > 0 {
			name = cfg.Source.Tiles[0]
		}
		st, err := store.Open(ctx, name, cfg.Store, cfg.Redis, l)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", source.ErrStorageUnavailable, err)
		}

		gl := texture.NewSoftwareContext(16)
		uploader := texture.NewUploader(gl, texture.NewPool(texturePoolSize), l)

		src, err := source.NewLocalSource(ctx, opts, st, uploader, loop, l)
		if err != nil {
			st.Close()
			return nil, nil, nil, err
		}
		return src, gl, func(context.Context) error { return src.Close() }, nil
	}

	return nil, nil, nil, fmt.Errorf("%w: unknown source type %q", source.ErrInvalidOptions, cfg.Source.Type)
}

func sourceOptions(cfg config.Source) source.Options {
	opts := source.Options{
		ID:                  cfg.ID,
		Type:                source.Type(cfg.Type),
		URL:                 cfg.URL,
		Tiles:               cfg.Tiles,
		Scheme:              tile.Scheme(cfg.Scheme),
		TileSize:            cfg.TileSize,
		MinZoom:             uint32(cfg.MinZoom),
		MaxZoom:             source.Zoom(uint32(cfg.MaxZoom)),
		ImageFormat:         cfg.ImageFormat,
		RefreshExpiredTiles: cfg.RefreshExpiredTiles,
	}
	if len(cfg.Bounds) == 4 {
		opts.Bounds = &[4]float64{cfg.Bounds[0], cfg.Bounds[1], cfg.Bounds[2], cfg.Bounds[3]}
	}
	return opts
}

func refreshExpired(ctx context.Context, uc *usecase.TileUseCase, interval time.Duration, l logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := uc.RefreshExpired(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
				l.Warn("expired tile refresh failed", "error", err)
			}
		}
	}
}
