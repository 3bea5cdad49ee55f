package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrInvalidPattern = errors.New("store: invalid file pattern")

// FilesystemStore keeps one file per tile at a path built from a pattern such
// as "tiles/{z}/{x}/{y}.png". With northUp set the {y} directory layout is
// XYZ and rows are flipped on the way in and out.
type FilesystemStore struct {
	pattern string
	northUp bool
}

func NewFilesystemStore(pattern string, northUp bool) (*FilesystemStore, error) {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(pattern, p) {
			return nil, fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return &FilesystemStore{pattern: pattern, northUp: northUp}, nil
}

var _ TileStore = (*FilesystemStore)(nil)

func (c *FilesystemStore) Get(_ context.Context, k TileKey) (TileValue, bool, error) {
	content, err := os.ReadFile(c.keyToPath(k))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return content, true, nil
}

func (c *FilesystemStore) Set(_ context.Context, k TileKey, v TileValue) error {
	path := c.keyToPath(k)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, v, 0644)
}

// Ping checks that the pattern root is reachable.
func (c *FilesystemStore) Ping(context.Context) error {
	root := c.pattern
	if i := strings.Index(root, "{"); i >= 0 {
		root = filepath.Dir(root[:i] + "x")
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("tile directory: %w", err)
	}
	return nil
}

func (c *FilesystemStore) Close() error {
	return nil
}

func (c *FilesystemStore) Driver() string {
	return "filesystem"
}

func (c *FilesystemStore) keyToPath(k TileKey) string {
	row := k.Row
	if c.northUp {
		row = (1 << k.Zoom) - 1 - k.Row
	}
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(k.Zoom), 10),
		"{x}", strconv.FormatUint(uint64(k.Column), 10),
		"{y}", strconv.FormatUint(uint64(row), 10),
	).Replace(c.pattern)
}
