// Package settings stores editor state that outlives a session: per-canvas
// zoom levels, recently used save locations and free-form key/value
// preferences.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/meow-stack/meow-studio/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS zoom_levels (
	canvas TEXT PRIMARY KEY,
	level REAL NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS recent_locations (
	mount TEXT NOT NULL,
	path TEXT NOT NULL,
	dir TEXT NOT NULL,
	saved_at DATETIME NOT NULL,
	PRIMARY KEY (mount, path)
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Location is a context a component was saved to.
type Location struct {
	Context types.Context `json:"context"`
	Dir     string        `json:"dir"`
	SavedAt time.Time     `json:"saved_at"`
}

// DB is the settings database.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (creating if needed) the settings database at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening settings database: %w", err)
	}

	// WAL lets the CLI read while a server writes
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("configuring settings database: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating settings schema: %w", err)
	}

	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// ZoomLevel returns the stored zoom level of a canvas. ok is false when
// none has been stored.
func (d *DB) ZoomLevel(ctx context.Context, canvas string) (level float64, ok bool, err error) {
	err = d.conn.QueryRowContext(ctx, "SELECT level FROM zoom_levels WHERE canvas = ?", canvas).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading zoom level of %s: %w", canvas, err)
	}
	return level, true, nil
}

// SetZoomLevel stores the zoom level of a canvas.
func (d *DB) SetZoomLevel(ctx context.Context, canvas string, level float64) error {
	_, err := d.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO zoom_levels (canvas, level, updated_at) VALUES (?, ?, ?)",
		canvas, level, d.now().UTC())
	if err != nil {
		return fmt.Errorf("storing zoom level of %s: %w", canvas, err)
	}
	return nil
}

// RecordSave remembers loc as the most recently used save location.
func (d *DB) RecordSave(ctx context.Context, loc types.Context, dir string) error {
	_, err := d.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO recent_locations (mount, path, dir, saved_at) VALUES (?, ?, ?, ?)",
		loc.Mount, loc.CleanPath(), dir, d.now().UTC())
	if err != nil {
		return fmt.Errorf("recording save location %s: %w", loc, err)
	}
	return nil
}

// RecentLocations returns up to limit save locations, newest first.
func (d *DB) RecentLocations(ctx context.Context, limit int) ([]Location, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.conn.QueryContext(ctx,
		"SELECT mount, path, dir, saved_at FROM recent_locations ORDER BY saved_at DESC, path ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent locations: %w", err)
	}
	defer rows.Close()

	var locs []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.Context.Mount, &loc.Context.Path, &loc.Dir, &loc.SavedAt); err != nil {
			return nil, fmt.Errorf("scanning recent location: %w", err)
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// Setting returns a stored preference. ok is false when unset.
func (d *DB) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = d.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores a preference.
func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	if _, err := d.conn.ExecContext(ctx, "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}
