// Package leaderboard keeps the final scores of finished games in SQLite.
//
// The store uses the pure-Go modernc.org/sqlite driver, so no cgo toolchain is
// needed. Pass ":memory:" to Open for an ephemeral store.
package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var ErrInvalidEntry = errors.New("invalid leaderboard entry")

// Entry is one finished game
type Entry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Variant    string    `json:"variant"`
	Score      int       `json:"score"`
	BestTile   int       `json:"best_tile"`
	Moves      int       `json:"moves"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store is a SQLite-backed leaderboard
type Store struct {
	db *sql.DB
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS scores (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	variant     TEXT NOT NULL,
	score       INTEGER NOT NULL,
	best_tile   INTEGER NOT NULL,
	moves       INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS scores_variant_score ON scores (variant, score DESC)`,
}

// Open opens (creating if needed) the leaderboard database at path
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open leaderboard: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished game. ID and RecordedAt are filled in when empty.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if strings.TrimSpace(e.Variant) == "" {
		return Entry{}, fmt.Errorf("%w: variant is required", ErrInvalidEntry)
	}
	if e.Score < 0 || e.Moves < 0 {
		return Entry{}, fmt.Errorf("%w: negative score or move count", ErrInvalidEntry)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	e.RecordedAt = e.RecordedAt.UTC().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (id, session_id, variant, score, best_tile, moves, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Variant, e.Score, e.BestTile, e.Moves, e.RecordedAt.UnixMilli())
	if err != nil {
		return Entry{}, fmt.Errorf("insert score: %w", err)
	}
	return e, nil
}

// Top returns the best scores, highest first. An empty variant spans all
// variants. Limit is clamped to [1, MaxLimit]; zero means DefaultLimit.
func (s *Store) Top(ctx context.Context, variant string, limit int) ([]Entry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	query := `SELECT id, session_id, variant, score, best_tile, moves, recorded_at FROM scores`
	args := []any{}
	if variant != "" {
		query += ` WHERE variant = ?`
		args = append(args, variant)
	}
	query += ` ORDER BY score DESC, recorded_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var recorded int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Variant, &e.Score, &e.BestTile, &e.Moves, &recorded); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		e.RecordedAt = time.UnixMilli(recorded).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
