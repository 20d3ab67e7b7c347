package store

import (
	"context"
	"time"
)

// SnapshotWriterLease names the lease that guards snapshot writes when
// several daemons share one backend.
const SnapshotWriterLease = "snapshot-writer"

// Lease is a time-bounded claim held by one writer.
type Lease struct {
	Name      string    `json:"name"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int64     `json:"version"`
}

// LeaseStore acquires and renews leases.
type LeaseStore interface {
	// Acquire tries to take the lease. Returns true if successful.
	// If the lease is already held by holderID, it renews it.
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)

	// Renew extends a lease held by holderID.
	// Returns ErrLeaseLost if the lease expired and was taken by someone else.
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error

	// Release gives the lease up if held by holderID.
	Release(ctx context.Context, name, holderID string) error

	// Get returns the current lease, or nil when nobody holds it.
	Get(ctx context.Context, name string) (*Lease, error)
}
