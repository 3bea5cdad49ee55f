package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Source    Source    `envPrefix:"SOURCE_"`
		Store     Store     `envPrefix:"STORE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Worker    Worker    `envPrefix:"WORKER_"`
		Upstream  Upstream  `envPrefix:"UPSTREAM_"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}

	Server struct {
		Port         string        `env:"PORT,required"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL,required"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-tilesource"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	// Source describes the single tile source served by this process.
	Source struct {
		ID                  string        `env:"ID" envDefault:"default"`
		Type                string        `env:"TYPE" envDefault:"raster-local"`
		URL                 string        `env:"URL"`
		Tiles               []string      `env:"TILES" envSeparator:","`
		Scheme              string        `env:"SCHEME" envDefault:"xyz"`
		TileSize            int           `env:"TILE_SIZE" envDefault:"512"`
		MinZoom             int           `env:"MIN_ZOOM" envDefault:"0"`
		MaxZoom             int           `env:"MAX_ZOOM" envDefault:"22"`
		Bounds              []float64     `env:"BOUNDS" envSeparator:","`
		ImageFormat         string        `env:"IMAGE_FORMAT" envDefault:"png"`
		RefreshExpiredTiles bool          `env:"REFRESH_EXPIRED_TILES" envDefault:"false"`
		RefreshInterval     time.Duration `env:"REFRESH_INTERVAL" envDefault:"1m"`
		AcquireTimeout      time.Duration `env:"ACQUIRE_TIMEOUT" envDefault:"30s"`
	}

	// Store selects the backend behind the raster-local source.
	Store struct {
		Driver   string `env:"DRIVER" envDefault:"sqlite"`
		Path     string `env:"PATH" envDefault:"tiles.mbtiles"`
		ReadOnly bool   `env:"READ_ONLY" envDefault:"false"`
		Pattern  string `env:"PATTERN" envDefault:"tiles/{z}/{x}/{y}.png"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"0"`
	}

	Worker struct {
		Count int `env:"COUNT" envDefault:"4"`
	}

	Upstream struct {
		UserAgent string        `env:"USER_AGENT" envDefault:"GuideHelper/1.0 (https://github.com/jaennil/guide_helper)"`
		Referer   string        `env:"REFERER" envDefault:""`
		Timeout   time.Duration `env:"TIMEOUT" envDefault:"30s"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
