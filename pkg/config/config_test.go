package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8080")
	t.Setenv("LOGGER_LEVEL", "debug")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTP.Server.Port)
	assert.Equal(t, "raster-local", cfg.Source.Type)
	assert.Equal(t, 512, cfg.Source.TileSize)
	assert.Equal(t, 22, cfg.Source.MaxZoom)
	assert.Equal(t, 30*time.Second, cfg.Source.AcquireTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestNewSourceLists(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8080")
	t.Setenv("LOGGER_LEVEL", "info")
	t.Setenv("SOURCE_TYPE", "vector")
	t.Setenv("SOURCE_TILES", "https://a.example.com/{z}/{x}/{y}.pbf,https://b.example.com/{z}/{x}/{y}.pbf")
	t.Setenv("SOURCE_BOUNDS", "37.3,55.5,37.9,56")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "vector", cfg.Source.Type)
	assert.Len(t, cfg.Source.Tiles, 2)
	assert.Equal(t, []float64{37.3, 55.5, 37.9, 56}, cfg.Source.Bounds)
}

func TestNewRejectsBadDuration(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8080")
	t.Setenv("LOGGER_LEVEL", "info")
	t.Setenv("SOURCE_ACQUIRE_TIMEOUT", "soon")

	_, err := New()
	assert.Error(t, err)
}
