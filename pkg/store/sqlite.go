package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrLeaseLost is returned when renewing a lease that is no longer held.
var ErrLeaseLost = errors.New("lease lost or stolen")

// Store keeps fractal snapshots and writer leases in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and applies the schema.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// snapshot transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the tables if they don't exist. Nodes and contributions
// keep their full JSON document next to the columns used for querying.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		fractal_level INTEGER NOT NULL,
		parent_id TEXT,
		payload JSON NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);

	CREATE TABLE IF NOT EXISTS contributions (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		node_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		ts INTEGER NOT NULL,
		payload JSON NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contributions_hash ON contributions(content_hash);
	CREATE INDEX IF NOT EXISTS idx_contributions_node ON contributions(node_id);
	CREATE INDEX IF NOT EXISTS idx_contributions_user ON contributions(user_id);

	CREATE TABLE IF NOT EXISTS snapshot_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		taken_at INTEGER NOT NULL,
		node_count INTEGER NOT NULL,
		contribution_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leases (
		name TEXT PRIMARY KEY,
		holder_id TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		version INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}
