package devices

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the remembered device list in a local sqlite file so
// it survives restarts.
type SQLiteStore struct {
	db  *sql.DB
	cap int
}

func NewSQLiteStore(dbPath string, cap int) (*SQLiteStore, error) {
	if cap <= 0 {
		cap = DefaultCap
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db, cap: cap}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS remembered_devices (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  seq INTEGER NOT NULL,
  last_connected_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create remembered_devices table: %w", err)
	}
	return nil
}

// Load returns the list most-recent-first. Unreadable storage is treated as
// empty, never as an error.
func (s *SQLiteStore) Load(ctx context.Context) ([]RememberedDevice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, last_connected_at FROM remembered_devices ORDER BY seq DESC`)
	if err != nil {
		return []RememberedDevice{}, nil
	}
	defer rows.Close()

	out := make([]RememberedDevice, 0, s.cap)
	for rows.Next() {
		var d RememberedDevice
		var ts string
		if err := rows.Scan(&d.ID, &d.Name, &ts); err != nil {
			return []RememberedDevice{}, nil
		}
		d.LastConnectedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, d)
	}
	if rows.Err() != nil {
		return []RememberedDevice{}, nil
	}
	return out, nil
}

// Upsert moves-or-inserts the device at the front and evicts beyond the
// bound. The whole write runs in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, device RememberedDevice) error {
	if device.LastConnectedAt.IsZero() {
		device.LastConnectedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM remembered_devices`).Scan(&next); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	const stmt = `
INSERT INTO remembered_devices (id, name, seq, last_connected_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name=excluded.name,
  seq=excluded.seq,
  last_connected_at=excluded.last_connected_at;
`
	if _, err := tx.ExecContext(ctx, stmt,
		device.ID, device.Name, next, device.LastConnectedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM remembered_devices WHERE id NOT IN
		   (SELECT id FROM remembered_devices ORDER BY seq DESC LIMIT ?)`, s.cap); err != nil {
		return fmt.Errorf("evict devices: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM remembered_devices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove device: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
