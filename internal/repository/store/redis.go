package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/tilesource/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL of stored tiles; zero keeps them forever.
	TTL time.Duration
	// Prefix namespaces the keys of one tile set.
	Prefix string
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "default"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
	}, nil
}

var _ TileStore = (*RedisStore)(nil)

func (c *RedisStore) keyFor(k TileKey) string {
	return fmt.Sprintf("tile:%s:%d:%d:%d", c.prefix, k.Zoom, k.Column, k.Row)
}

func (c *RedisStore) Get(ctx context.Context, k TileKey) (TileValue, bool, error) {
	data, err := c.client.Get(ctx, c.keyFor(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		metrics.StoreErrors.WithLabelValues(c.Driver(), "get").Inc()
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	return data, true, nil
}

func (c *RedisStore) Set(ctx context.Context, k TileKey, v TileValue) error {
	if err := c.client.Set(ctx, c.keyFor(k), []byte(v), c.ttl).Err(); err != nil {
		metrics.StoreErrors.WithLabelValues(c.Driver(), "set").Inc()
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (c *RedisStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStore) Close() error {
	return c.client.Close()
}

func (c *RedisStore) Driver() string {
	return "redis"
}
