package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rmax-ai/fractald/pkg/graph"
)

// SaveSnapshot replaces the stored tables with snap in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap graph.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM nodes", "DELETE FROM contributions"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear tables: %w", err)
		}
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, fractal_level, parent_id, payload) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for _, n := range snap.Nodes {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal node %s: %w", n.ID, err)
		}
		var parent sql.NullString
		if n.ParentID != "" {
			parent = sql.NullString{String: n.ParentID, Valid: true}
		}
		if _, err := nodeStmt.ExecContext(ctx, n.ID, n.FractalLevel, parent, string(payload)); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	contribStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contributions (seq, id, node_id, user_id, content_hash, ts, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare contribution insert: %w", err)
	}
	defer contribStmt.Close()

	for i, c := range snap.Contributions {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal contribution %s: %w", c.ID, err)
		}
		if _, err := contribStmt.ExecContext(ctx, i+1, c.ID, c.NodeID, c.UserID, c.Hash(), c.Timestamp.UnixNano(), string(payload)); err != nil {
			return fmt.Errorf("failed to insert contribution %s: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (id, taken_at, node_count, contribution_count) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			taken_at = excluded.taken_at,
			node_count = excluded.node_count,
			contribution_count = excluded.contribution_count
	`, snap.TakenAt.UnixNano(), len(snap.Nodes), len(snap.Contributions)); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored tables back. Contributions come back in
// ledger order.
func (s *Store) LoadSnapshot(ctx context.Context) (graph.Snapshot, bool, error) {
	var takenAt int64
	err := s.db.QueryRowContext(ctx, `SELECT taken_at FROM snapshot_meta WHERE id = 1`).Scan(&takenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return graph.Snapshot{}, false, nil
		}
		return graph.Snapshot{}, false, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}

	snap := graph.Snapshot{TakenAt: time.Unix(0, takenAt).UTC()}

	err = s.scanPayloads(ctx, `SELECT payload FROM nodes ORDER BY id`, func(payload []byte) error {
		var n graph.Node
		if err := json.Unmarshal(payload, &n); err != nil {
			return fmt.Errorf("failed to unmarshal node: %w", err)
		}
		snap.Nodes = append(snap.Nodes, n)
		return nil
	})
	if err != nil {
		return graph.Snapshot{}, false, err
	}

	err = s.scanPayloads(ctx, `SELECT payload FROM contributions ORDER BY seq`, func(payload []byte) error {
		var c graph.Contribution
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("failed to unmarshal contribution: %w", err)
		}
		snap.Contributions = append(snap.Contributions, c)
		return nil
	})
	if err != nil {
		return graph.Snapshot{}, false, err
	}

	return snap, true, nil
}

// scanPayloads runs a single-column query and hands every value to fn. The
// rows are closed before it returns so the next query can reuse the
// connection.
func (s *Store) scanPayloads(ctx context.Context, query string, fn func([]byte) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := fn([]byte(payload)); err != nil {
			return err
		}
	}
	return rows.Err()
}
