package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore reads and writes tiles in an MBTiles database.
type SQLiteStore struct {
	db      *sql.DB
	getStmt *sql.Stmt
	logger  logger.Logger
}

// NewSQLiteStore opens the MBTiles file at path. Writable stores are migrated
// to the MBTiles schema; read-only stores must already contain a tiles table.
func NewSQLiteStore(ctx context.Context, path string, readOnly bool, l logger.Logger) (*SQLiteStore, error) {
	mode := "rwc"
	if readOnly {
		mode = "ro"
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=%s", path, mode))
	if err != nil {
		return nil, err
	}

	c := &SQLiteStore{
		db:     db,
		logger: l,
	}

	if err := c.init(ctx, readOnly); err != nil {
		db.Close()
		return nil, err
	}

	l.Info("sqlite tile store initialized", "path", path, "read_only", readOnly)

	return c, nil
}

func (c *SQLiteStore) init(ctx context.Context, readOnly bool) error {
	if err := c.db.PingContext(ctx); err != nil {
		return err
	}

	if readOnly {
		var name string
		err := c.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE name = 'tiles' AND type IN ('table', 'view')`,
		).Scan(&name)
		if err != nil {
			return fmt.Errorf("mbtiles tiles table: %w", err)
		}
	} else if err := c.runMigrations(ctx); err != nil {
		return fmt.Errorf("migrate tile store: %w", err)
	}

	stmt, err := c.db.PrepareContext(ctx,
		`SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`)
	if err != nil {
		return err
	}
	c.getStmt = stmt
	return nil
}

func (c *SQLiteStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{c.logger})

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	err = goose.UpContext(ctx, c.db, "migrations")
	if err != nil {
		return err
	}

	return nil
}

var _ TileStore = (*SQLiteStore)(nil)

func (c *SQLiteStore) Get(ctx context.Context, k TileKey) (TileValue, bool, error) {
	c.logger.Debug("sqlite store get", "z", k.Zoom, "column", k.Column, "row", k.Row)

	var tileData []byte
	err := c.getStmt.QueryRowContext(ctx, k.Zoom, k.Column, k.Row).Scan(&tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		c.logger.Error("sqlite store get failed", "z", k.Zoom, "column", k.Column, "row", k.Row, "error", err)
		return nil, false, err
	}

	return tileData, true, nil
}

func (c *SQLiteStore) Set(ctx context.Context, k TileKey, v TileValue) error {
	c.logger.Debug("sqlite store set", "z", k.Zoom, "column", k.Column, "row", k.Row)

	query := `INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(zoom_level, tile_column, tile_row) DO UPDATE SET tile_data = excluded.tile_data`

	_, err := c.db.ExecContext(ctx, query, k.Zoom, k.Column, k.Row, []byte(v))
	if err != nil {
		c.logger.Error("sqlite store set failed", "z", k.Zoom, "column", k.Column, "row", k.Row, "error", err)
		return err
	}

	return nil
}

// Metadata returns the name/value pairs of the MBTiles metadata table.
func (c *SQLiteStore) Metadata(ctx context.Context) (map[string]string, error) {
	metadata := make(map[string]string)

	rows, err := c.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return metadata, nil
}

func (c *SQLiteStore) SetMetadata(ctx context.Context, name, value string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO metadata (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	return err
}

func (c *SQLiteStore) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteStore) Close() error {
	return errors.Join(c.getStmt.Close(), c.db.Close())
}

func (c *SQLiteStore) Driver() string {
	return "sqlite"
}

type gooseLogger struct {
	l logger.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debug(fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Fatal(fmt.Sprintf(format, v...))
}
