// Package imagecache fetches catalog images into a local directory, one file
// per product id, tracked by a SQLite manifest so re-runs skip finished work.
package imagecache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Download statuses recorded in the manifest.
const (
	StatusFetched = "fetched"
	StatusFailed  = "failed"
)

// Manifest records per-product download outcomes in SQLite.
type Manifest struct {
	db *sql.DB
}

// OpenManifest opens or creates the manifest database at dbPath and
// initializes the schema. Parent directories are created if missing.
func OpenManifest(dbPath string) (*Manifest, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		product_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		fetched_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_images_status ON images(status);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize manifest schema: %w", err)
	}
	return &Manifest{db: db}, nil
}

// RecordFetched marks the image for id as downloaded.
func (m *Manifest) RecordFetched(ctx context.Context, id, url string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO images (product_id, url, status, error, fetched_at)
		 VALUES (?, ?, ?, NULL, ?)
		 ON CONFLICT(product_id) DO UPDATE SET url=excluded.url, status=excluded.status, error=NULL, fetched_at=excluded.fetched_at`,
		id, url, StatusFetched, time.Now(),
	)
	return err
}

// RecordFailed marks the image for id as failed with the given reason.
func (m *Manifest) RecordFailed(ctx context.Context, id, url, reason string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO images (product_id, url, status, error, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(product_id) DO UPDATE SET url=excluded.url, status=excluded.status, error=excluded.error, fetched_at=excluded.fetched_at`,
		id, url, StatusFailed, reason, time.Now(),
	)
	return err
}

// Status returns the recorded status for id; ok=false when the id is unknown.
func (m *Manifest) Status(ctx context.Context, id string) (status string, ok bool, err error) {
	err = m.db.QueryRowContext(ctx,
		`SELECT status FROM images WHERE product_id = ?`, id,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

// Counts returns how many entries exist per status.
func (m *Manifest) Counts(ctx context.Context) (map[string]int64, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM images GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Close closes the manifest database.
func (m *Manifest) Close() error {
	return m.db.Close()
}
