// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Current schema version
const SchemaVersion = "2"

// tsLayout is fixed width so that timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite is a SQLite-backed store.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite creates a new SQLite store at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			script TEXT NOT NULL,
			source TEXT NOT NULL,
			result TEXT NOT NULL,
			ts TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}

	// Unlocked variants: nothing else can hold s yet.
	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}

	if version == "" || version == "1" {
		if err := s.migrateToV2(); err != nil {
			db.Close()
			return nil, err
		}
		if err := s.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	} else if version != SchemaVersion {
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return s, nil
}

// migrateToV2 adds the ok flag and the timestamp index. Version 1 only
// recorded successful runs.
func (s *SQLite) migrateToV2() error {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name = 'ok'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.db.Exec(`ALTER TABLE runs ADD COLUMN ok INTEGER NOT NULL DEFAULT 1`); err != nil {
			return err
		}
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS runs_ts ON runs (ts)`)
	return err
}

// Save records a run.
func (s *SQLite) Save(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO runs (id, script, source, ok, result, ts) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			script = excluded.script,
			source = excluded.source,
			ok = excluded.ok,
			result = excluded.result,
			ts = excluded.ts
	`, r.ID, r.Script, r.Source, r.OK, string(r.Result), r.Ts.UTC().Format(tsLayout))
	return err
}

const selectRuns = `SELECT id, script, source, ok, result, ts FROM runs`

// Get retrieves a run by ID.
func (s *SQLite) Get(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := scanRun(s.db.QueryRow(selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Latest returns the most recent run.
func (s *SQLite) Latest() (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := scanRun(s.db.QueryRow(selectRuns + ` ORDER BY ts DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// List returns runs newest first.
func (s *SQLite) List(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := selectRuns + ` ORDER BY ts DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetMetadata retrieves a metadata value by key.
func (s *SQLite) GetMetadata(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetadataUnlocked(key)
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata stores a metadata value by key.
func (s *SQLite) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMetadataUnlocked(key, value)
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r      Run
		result string
		ts     string
	)
	if err := row.Scan(&r.ID, &r.Script, &r.Source, &r.OK, &result, &ts); err != nil {
		return nil, err
	}
	t, err := time.Parse(tsLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, ts, err)
	}
	r.Result = []byte(result)
	r.Ts = t
	return &r, nil
}
