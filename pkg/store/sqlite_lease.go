package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Acquire tries to take the lease. Returns true if successful.
// If the lease is already held by holderID, it renews it.
func (s *Store) Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expiry := now.Add(ttl)

	// Insert when nobody ever held it; otherwise take over in one atomic
	// UPDATE if we own it or it has expired.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (name, holder_id, expires_at, version)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			holder_id = excluded.holder_id,
			expires_at = excluded.expires_at,
			version = leases.version + 1
		WHERE leases.holder_id = excluded.holder_id OR leases.expires_at < ?
	`, name, holderID, expiry.UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows > 0, nil
}

// Renew extends the lease held by holderID.
func (s *Store) Renew(ctx context.Context, name, holderID string, ttl time.Duration) error {
	expiry := time.Now().UTC().Add(ttl)

	res, err := s.db.ExecContext(ctx, `
		UPDATE leases
		SET expires_at = ?, version = version + 1
		WHERE name = ? AND holder_id = ?
	`, expiry.UnixMilli(), name, holderID)
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Release deletes the lease if held by holderID.
func (s *Store) Release(ctx context.Context, name, holderID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM leases WHERE name = ? AND holder_id = ?
	`, name, holderID)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// Get returns the current lease state.
func (s *Store) Get(ctx context.Context, name string) (*Lease, error) {
	var (
		l         Lease
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, holder_id, expires_at, version
		FROM leases WHERE name = ?
	`, name).Scan(&l.Name, &l.HolderID, &expiresAt, &l.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}
	l.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &l, nil
}
