// Package sqlite persists response-cache snapshots in a SQLite file so a
// restarted process can warm its cache instead of recomputing every answer.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/IvanBrykalov/rescache/response"
)

// Store is a snapshot file for response.Cache entries.
type Store struct {
	db *sql.DB
}

const createSnapshotTable = `
CREATE TABLE IF NOT EXISTS response_snapshot (
	position    INTEGER PRIMARY KEY,
	fingerprint TEXT    NOT NULL,
	question    TEXT    NOT NULL,
	response    TEXT    NOT NULL,
	inserted_at INTEGER NOT NULL,
	last_access INTEGER NOT NULL
);
`

// Open opens (creating if needed) the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	// One writer at a time; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createSnapshotTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}
	return &Store{db: db}, nil
}

// Save replaces the stored snapshot with entries, keeping their order.
// The replacement is atomic: a failed Save leaves the previous snapshot.
func (s *Store) Save(ctx context.Context, entries []response.Entry) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM response_snapshot`); err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO response_snapshot (position, fingerprint, question, response, inserted_at, last_access)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err = stmt.ExecContext(ctx, i, e.Fingerprint, e.Question, e.Response,
			e.InsertedAt.UnixNano(), e.LastAccess.UnixNano()); err != nil {
			return fmt.Errorf("snapshot save %q: %w", e.Fingerprint, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("snapshot commit: %w", err)
	}
	return nil
}

// Load returns the stored snapshot in the order it was saved.
func (s *Store) Load(ctx context.Context) ([]response.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, question, response, inserted_at, last_access
		 FROM response_snapshot ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("snapshot load: %w", err)
	}
	defer rows.Close()

	var out []response.Entry
	for rows.Next() {
		var (
			e                  response.Entry
			inserted, accessed int64
		)
		if err := rows.Scan(&e.Fingerprint, &e.Question, &e.Response, &inserted, &accessed); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		e.InsertedAt = time.Unix(0, inserted)
		e.LastAccess = time.Unix(0, accessed)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot load: %w", err)
	}
	return out, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
