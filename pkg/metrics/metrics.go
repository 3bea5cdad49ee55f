package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilesource_tile_requests_total",
		Help: "Total number of tile requests issued to a backend",
	}, []string{"source", "kind"})

	TileReloadsDeferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilesource_tile_reloads_deferred_total",
		Help: "Total number of reloads queued behind an in-flight request",
	}, []string{"source"})

	TileCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilesource_tile_completions_total",
		Help: "Total number of settled tile requests by outcome",
	}, []string{"source", "outcome"})

	TileAborts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilesource_tile_aborts_total",
		Help: "Total number of abort requests",
	}, []string{"source"})

	TileUnloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilesource_tile_unloads_total",
		Help: "Total number of tile unloads",
	}, []string{"source"})

	PlaceholderTiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilesource_placeholder_tiles_total",
		Help: "Total number of local lookups answered with the transparent placeholder",
	}, []string{"source"})

	StoreLookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tilesource_store_lookup_duration_seconds",
		Help:    "Duration of local tile store lookups in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"driver"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilesource_store_errors_total",
		Help: "Total number of local tile store errors",
	}, []string{"driver", "operation"})

	DispatchMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilesource_dispatch_messages_total",
		Help: "Total number of messages sent to workers",
	}, []string{"operation", "pinned"})

	WorkerFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tilesource_worker_fetch_duration_seconds",
		Help:    "Latency of upstream tile fetches performed by workers in seconds",
		Buckets: prometheus.DefBuckets,
	})

	TextureAllocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilesource_texture_allocations_total",
		Help: "Total number of texture objects created",
	})

	TextureUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilesource_texture_updates_total",
		Help: "Total number of in-place texture content updates",
	})

	ActiveTiles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tilesource_active_tiles",
		Help: "Number of tiles currently held by the view",
	}, []string{"source"})
)
