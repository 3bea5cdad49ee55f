package store

import (
	"context"
	"sync"
)

type MapStore struct {
	m *TypedSyncMap
}

type TypedSyncMap struct {
	m sync.Map
}

func (c *TypedSyncMap) Load(k TileKey) (TileValue, bool) {
	v, exists := c.m.Load(k)
	if !exists {
		return nil, false
	}
	return v.(TileValue), exists
}

func (c *TypedSyncMap) Store(k TileKey, v TileValue) {
	c.m.Store(k, v)
}

func NewMapStore() *MapStore {
	return &MapStore{
		m: &TypedSyncMap{},
	}
}

var _ TileStore = (*MapStore)(nil)

func (c *MapStore) Get(_ context.Context, k TileKey) (TileValue, bool, error) {
	v, exists := c.m.Load(k)
	return v, exists, nil
}

func (c *MapStore) Set(_ context.Context, k TileKey, v TileValue) error {
	c.m.Store(k, v)
	return nil
}

func (c *MapStore) Ping(context.Context) error {
	return nil
}

func (c *MapStore) Close() error {
	return nil
}

func (c *MapStore) Driver() string {
	return "map"
}
