// Package store caches finished outlines in SQLite, keyed by the SHA-256 of
// the uploaded bytes and the fingerprint of the engine settings that
// produced them, so a document is outlined once per configuration.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// ErrNotFound is returned by Get when no outline is cached for a hash.
var ErrNotFound = errors.New("outline not found")

const schema = `
CREATE TABLE IF NOT EXISTS outlines (
	hash         TEXT NOT NULL,
	fingerprint  TEXT NOT NULL DEFAULT '',
	filename     TEXT NOT NULL,
	title        TEXT NOT NULL,
	outline_json TEXT NOT NULL,
	escalation   TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (hash, fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_outlines_created ON outlines(created_at);
`

// Record is one cached outline.
type Record struct {
	Hash        string         `json:"hash"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Filename   string         `json:"filename"`
	Export     doctree.Export `json:"export"`
	Escalation string         `json:"escalation,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store is a SQLite-backed outline cache. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" works for tests
// but is limited to a single connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the outline cached for hash under fingerprint, or
// ErrNotFound.
func (s *Store) Get(ctx context.Context, hash, fingerprint string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hash, fingerprint, filename, title, outline_json, escalation, created_at
		 FROM outlines WHERE hash = ? AND fingerprint = ?`, hash, fingerprint)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get outline %s: %w", hash, err)
	}
	return rec, nil
}

// Put stores rec, replacing any outline already cached under its hash and
// fingerprint. A zero CreatedAt is set to now.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if rec.Hash == "" {
		return errors.New("put outline: empty hash")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	outline := rec.Export.Outline
	if outline == nil {
		outline = []doctree.ExportEntry{}
	}
	data, err := json.Marshal(outline)
	if err != nil {
		return fmt.Errorf("marshal outline: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outlines (hash, fingerprint, filename, title, outline_json, escalation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Hash, rec.Fingerprint, rec.Filename, rec.Export.Title, string(data), rec.Escalation, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put outline %s: %w", rec.Hash, err)
	}
	return nil
}

// List returns up to limit cached outlines, newest first. limit <= 0 means
// no limit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, fingerprint, filename, title, outline_json, escalation, created_at
		 FROM outlines ORDER BY created_at DESC, hash, fingerprint LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outlines: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list outlines: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Delete removes every outline cached for hash, whatever its fingerprint.
// Deleting a missing hash returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, hash string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outlines WHERE hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("delete outline %s: %w", hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete outline %s: %w", hash, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of cached outlines.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outlines`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outlines: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec     Record
		outline string
		created int64
	)
	if err := sc.Scan(&rec.Hash, &rec.Fingerprint, &rec.Filename, &rec.Export.Title, &outline, &rec.Escalation, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(outline), &rec.Export.Outline); err != nil {
		return nil, fmt.Errorf("decode outline %s: %w", rec.Hash, err)
	}
	if rec.Export.Outline == nil {
		rec.Export.Outline = []doctree.ExportEntry{}
	}
	rec.CreatedAt = time.UnixMilli(created)
	return &rec, nil
}
