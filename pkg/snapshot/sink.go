// Package snapshot persists the fractal store on a best-effort basis. The
// store itself never does I/O; a Worker copies it out to a Sink on a timer
// and the daemon restores the latest copy at startup.
package snapshot

import (
	"context"
	"fmt"

	"github.com/rmax-ai/fractald/pkg/graph"
)

// Sink stores and loads whole-store snapshots.
type Sink interface {
	// SaveSnapshot replaces the stored snapshot with snap.
	SaveSnapshot(ctx context.Context, snap graph.Snapshot) error

	// LoadSnapshot returns the stored snapshot. The boolean is false when
	// nothing has been saved yet.
	LoadSnapshot(ctx context.Context) (graph.Snapshot, bool, error)
}

// RestoreLatest loads the latest snapshot from sink into st. It reports
// whether a snapshot was found.
func RestoreLatest(ctx context.Context, sink Sink, st *graph.Store) (bool, error) {
	snap, ok, err := sink.LoadSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := st.Restore(snap); err != nil {
		return false, err
	}
	return true, nil
}
