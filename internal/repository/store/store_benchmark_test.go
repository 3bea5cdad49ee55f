package store

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
)

const (
	smallTileSize  = 1024      // 1KB
	mediumTileSize = 10 * 1024 // 10KB
	largeTileSize  = 50 * 1024 // 50KB
)

func generateTileData(size int) []byte {
	data := make([]byte, size)
	rand.Read(data)
	return data
}

func benchKey(i int) TileKey {
	return TileKey{Zoom: uint32(i % 20), Column: uint32(i % 1000), Row: uint32(i % 1000)}
}

func setupSQLiteStore(b *testing.B) TileStore {
	b.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(b.TempDir(), "bench.mbtiles"), false, logger.NewNop())
	if err != nil {
		b.Fatalf("Failed to create SQLite store: %v", err)
	}
	b.Cleanup(func() { s.Close() })
	return s
}

func setupMapStore(b *testing.B) TileStore {
	b.Helper()
	return NewMapStore()
}

func setupFilesystemStore(b *testing.B) TileStore {
	b.Helper()
	s, err := NewFilesystemStore(filepath.Join(b.TempDir(), "{z}", "{x}", "{y}.png"), false)
	if err != nil {
		b.Fatalf("Failed to create filesystem store: %v", err)
	}
	return s
}

var benchStores = []struct {
	name  string
	setup func(b *testing.B) TileStore
}{
	{"SQLite", setupSQLiteStore},
	{"Map", setupMapStore},
	{"Filesystem", setupFilesystemStore},
}

func BenchmarkSet(b *testing.B) {
	ctx := context.Background()
	for _, size := range []struct {
		name  string
		bytes int
	}{{"Small", smallTileSize}, {"Large", largeTileSize}} {
		for _, bs := range benchStores {
			b.Run(bs.name+"_"+size.name, func(b *testing.B) {
				s := bs.setup(b)
				data := generateTileData(size.bytes)

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := s.Set(ctx, benchKey(i), data); err != nil {
						b.Fatalf("Set failed: %v", err)
					}
				}
			})
		}
	}
}

func BenchmarkGet(b *testing.B) {
	ctx := context.Background()
	for _, bs := range benchStores {
		b.Run(bs.name, func(b *testing.B) {
			s := bs.setup(b)
			data := generateTileData(smallTileSize)

			// Populate store
			for i := 0; i < 100; i++ {
				s.Set(ctx, benchKey(i), data)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := s.Get(ctx, benchKey(i%100)); err != nil {
					b.Fatalf("Get failed: %v", err)
				}
			}
		})
	}
}

// 80% reads, 20% writes
func BenchmarkMixed(b *testing.B) {
	ctx := context.Background()
	for _, bs := range benchStores {
		b.Run(bs.name, func(b *testing.B) {
			s := bs.setup(b)
			data := generateTileData(mediumTileSize)

			for i := 0; i < 50; i++ {
				s.Set(ctx, benchKey(i), data)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				key := benchKey(i % 100)
				if i%5 == 0 {
					s.Set(ctx, key, data)
				} else {
					s.Get(ctx, key)
				}
			}
		})
	}
}

func BenchmarkConcurrent(b *testing.B) {
	ctx := context.Background()
	for _, bs := range benchStores {
		b.Run(bs.name, func(b *testing.B) {
			s := bs.setup(b)
			data := generateTileData(mediumTileSize)

			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					key := benchKey(i % 100)
					if i%5 == 0 {
						s.Set(ctx, key, data)
					} else {
						s.Get(ctx, key)
					}
					i++
				}
			})
		})
	}
}
