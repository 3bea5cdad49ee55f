package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jaennil/guide_helper/tilesource/pkg/config"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
)

// Open returns the store named by a raster-local source's first tiles entry.
// For the sqlite driver name is the database file, ".mbtiles" being appended
// when it has no extension; an empty name falls back to cfg.Path. Redis uses
// name as its key prefix.
func Open(ctx context.Context, name string, cfg config.Store, rcfg config.Redis, l logger.Logger) (TileStore, error) {
	switch cfg.Driver {
	case "sqlite":
		path := name
		if path == "" {
			path = cfg.Path
		} else if filepath.Ext(path) == "" {
			path += ".mbtiles"
		}
		if !filepath.IsAbs(path) && cfg.Path != "" && name != "" {
			path = filepath.Join(filepath.Dir(cfg.Path), path)
		}
		return NewSQLiteStore(ctx, path, cfg.ReadOnly, l)

	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Addr:     rcfg.Addr,
			Password: rcfg.Password,
			DB:       rcfg.DB,
			TTL:      rcfg.TTL,
			Prefix:   name,
		})

	case "filesystem":
		pattern := cfg.Pattern
		if name != "" && !strings.Contains(name, "{") {
			pattern = filepath.Join(name, "{z}", "{x}", "{y}.png")
		}
		return NewFilesystemStore(pattern, false)

	case "map":
		return NewMapStore(), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}
