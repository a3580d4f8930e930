package adjust

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Repository backed by a sqlite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and migrates it.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	d := &SQLite{db: sqlDB}
	if err := d.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return d, nil
}

func (d *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS subtitle_timestamp_adjustments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT UNIQUE NOT NULL,
		subtitle_path TEXT NOT NULL,
		subtitle_hash TEXT NOT NULL,
		start_at REAL NOT NULL,
		end_at REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sta_hash ON subtitle_timestamp_adjustments(subtitle_hash);
	CREATE INDEX IF NOT EXISTS idx_sta_path ON subtitle_timestamp_adjustments(subtitle_path);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Close closes the database.
func (d *SQLite) Close() error {
	return d.db.Close()
}

func (d *SQLite) Upsert(ctx context.Context, a Adjustment) error {
	now := time.Now().UTC()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO subtitle_timestamp_adjustments
			(key, subtitle_path, subtitle_hash, start_at, end_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET subtitle_path=?, start_at=?, end_at=?, updated_at=?`,
		a.Key, a.SubtitlePath, a.SubtitleHash, a.Start, a.End, now, now,
		a.SubtitlePath, a.Start, a.End, now,
	)
	return err
}

func (d *SQLite) DeleteByKey(ctx context.Context, key string) error {
	_, err := d.db.ExecContext(ctx,
		"DELETE FROM subtitle_timestamp_adjustments WHERE key = ?", key)
	return err
}

func (d *SQLite) DeleteByFileHash(ctx context.Context, hash string) error {
	_, err := d.db.ExecContext(ctx,
		"DELETE FROM subtitle_timestamp_adjustments WHERE subtitle_hash = ?", hash)
	return err
}

const selectAdjustments = `SELECT key, subtitle_path, subtitle_hash, start_at, end_at, created_at, updated_at
	FROM subtitle_timestamp_adjustments`

func (d *SQLite) FindByKey(ctx context.Context, key string) (*Adjustment, error) {
	a := &Adjustment{}
	err := d.db.QueryRowContext(ctx, selectAdjustments+" WHERE key = ?", key).Scan(
		&a.Key, &a.SubtitlePath, &a.SubtitleHash, &a.Start, &a.End, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (d *SQLite) FindByPath(ctx context.Context, path string) ([]Adjustment, error) {
	return d.query(ctx, selectAdjustments+" WHERE subtitle_path = ? ORDER BY id", path)
}

func (d *SQLite) FindByHash(ctx context.Context, hash string) ([]Adjustment, error) {
	return d.query(ctx, selectAdjustments+" WHERE subtitle_hash = ? ORDER BY id", hash)
}

func (d *SQLite) query(ctx context.Context, q string, args ...any) ([]Adjustment, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Adjustment
	for rows.Next() {
		var a Adjustment
		if err := rows.Scan(
			&a.Key, &a.SubtitlePath, &a.SubtitleHash, &a.Start, &a.End, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
