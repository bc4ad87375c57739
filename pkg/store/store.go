// Package store persists world log snapshots, either as rows of a SQLite
// database that keeps every saved version or as single compressed files.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/sdfworld/pkg/world"
	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned by LoadSnapshot on an empty database.
var ErrNoSnapshot = errors.New("store: no snapshot saved")

// Store is a SQLite database of snapshots.
type Store struct {
	db   *sql.DB
	once sync.Once
}

// Info describes one saved snapshot.
type Info struct {
	ID         int64
	ClearCount int
	Count      int
	Size       int
	SavedAt    time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			clear_count INTEGER NOT NULL,
			count INTEGER NOT NULL,
			data BLOB NOT NULL,
			saved_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

// SaveSnapshot appends snap and returns its row id.
func (s *Store) SaveSnapshot(ctx context.Context, snap world.Snapshot) (int64, error) {
	if snap.Data == nil {
		snap.Data = []byte{}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (clear_count, count, data, saved_at) VALUES (?, ?, ?, ?)`,
		snap.ClearCount, snap.Count, snap.Data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("store: save snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LoadSnapshot returns the most recently saved snapshot.
func (s *Store) LoadSnapshot(ctx context.Context) (world.Snapshot, error) {
	var snap world.Snapshot
	row := s.db.QueryRowContext(ctx, `SELECT clear_count, count, data FROM snapshots ORDER BY id DESC LIMIT 1`)
	if err := row.Scan(&snap.ClearCount, &snap.Count, &snap.Data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snap, ErrNoSnapshot
		}
		return snap, fmt.Errorf("store: load snapshot: %w", err)
	}
	return snap, nil
}

// Snapshots lists saved snapshots, newest first.
func (s *Store) Snapshots(ctx context.Context, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, clear_count, count, length(data), saved_at FROM snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer rows.Close()
	var out []Info
	for rows.Next() {
		var (
			info    Info
			savedAt string
		)
		if err := rows.Scan(&info.ID, &info.ClearCount, &info.Count, &info.Size, &savedAt); err != nil {
			return nil, fmt.Errorf("store: list snapshots: %w", err)
		}
		info.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep snapshots and returns how many rows
// it removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`, max(keep, 0))
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}
