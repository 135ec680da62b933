package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultHistory is how many recent snapshots each store keeps.
const DefaultHistory = 20

// SQLiteStore keeps the snapshot in the snapshots table and a bounded
// history of earlier saves in snapshot_history.
type SQLiteStore struct {
	db      *sql.DB
	key     string
	history int
}

// NewSQLiteStore creates a store on an already migrated database.
func NewSQLiteStore(db *sql.DB, key string) *SQLiteStore {
	if key == "" {
		key = DefaultKey
	}
	return &SQLiteStore{db: db, key: key, history: DefaultHistory}
}

// Load reads the current snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshots WHERE key = ?`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return decode([]byte(value))
}

// Save replaces the current snapshot and appends it to the history.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Warn("rolling back snapshot save", "error", err)
		}
	}()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (key, value, version, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version, updated_at = excluded.updated_at`,
		s.key, string(data), snap.Version, now,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_history (key, value, saved_at) VALUES (?, ?, ?)`,
		s.key, string(data), now,
	); err != nil {
		return fmt.Errorf("recording snapshot history: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_history WHERE key = ? AND id NOT IN (
			SELECT id FROM snapshot_history WHERE key = ? ORDER BY id DESC LIMIT ?
		)`,
		s.key, s.key, s.history,
	); err != nil {
		return fmt.Errorf("pruning snapshot history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// History returns up to limit earlier snapshots, newest first.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = s.history
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM snapshot_history WHERE key = ? ORDER BY id DESC LIMIT ?`,
		s.key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot history: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing snapshot history rows", "error", cerr)
		}
	}()

	var out []*Snapshot
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scanning snapshot history: %w", err)
		}
		snap, err := decode([]byte(value))
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot history: %w", err)
	}
	return out, nil
}
