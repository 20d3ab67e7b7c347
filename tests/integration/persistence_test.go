package integration_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rmax-ai/fractald/pkg/api"
	"github.com/rmax-ai/fractald/pkg/client"
	"github.com/rmax-ai/fractald/pkg/graph"
	"github.com/rmax-ai/fractald/pkg/snapshot"
	"github.com/rmax-ai/fractald/pkg/store"
)

func TestPersistenceIntegration(t *testing.T) {
	// Setup: Create temporary SQLite DB
	tmpDir, err := os.MkdirTemp("", "fractald-integration-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "persistence_test.db")
	sqlite, err := store.NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer sqlite.Close()

	ctx := context.Background()

	// First node: seed, serve and accept contributions over HTTP
	first := graph.NewStore()
	if err := first.Seed(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	ts := httptest.NewServer(api.NewServer(first, nil, "", nil).Handler())
	c := client.NewClient(ts.URL)

	hybrid, err := graph.NewHybrid(
		graph.MustContext(graph.FamilyPhysicalState, graph.ValueFlow),
		graph.MustContext(graph.FamilySymbolic, graph.ValuePersonal),
	)
	if err != nil {
		t.Fatalf("failed to build hybrid: %v", err)
	}
	receipt, err := c.Contribute(ctx, client.Contribution{
		Actor:   "integration-user",
		NodeID:  "codex:Breath:physical-state:flow",
		Content: "breath moves like water",
		Context: &hybrid,
	})
	if err != nil {
		t.Fatalf("contribute failed: %v", err)
	}
	ts.Close()

	// Snapshot through the worker, holding the writer lease
	worker := snapshot.NewWorker(first, sqlite, time.Minute, nil).
		WithLease(sqlite, store.SnapshotWriterLease, "integration")
	saved, err := worker.TakeSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if !saved {
		t.Fatal("expected the first snapshot to be written")
	}

	// A second writer cannot take the lease while it is held
	other := snapshot.NewWorker(first, sqlite, time.Minute, nil).
		WithLease(sqlite, store.SnapshotWriterLease, "someone-else")
	saved, err = other.TakeSnapshot(ctx)
	if err != nil {
		t.Fatalf("second snapshot errored: %v", err)
	}
	if saved {
		t.Error("expected the second writer to be locked out")
	}

	// Second node: restore from SQLite and serve the same data
	second := graph.NewStore()
	restored, err := snapshot.RestoreLatest(ctx, sqlite, second)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !restored {
		t.Fatal("expected a snapshot to restore")
	}
	if err := second.CheckInvariants(); err != nil {
		t.Fatalf("restored store violates invariants: %v", err)
	}

	ts2 := httptest.NewServer(api.NewServer(second, nil, "", nil).Handler())
	defer ts2.Close()
	c2 := client.NewClient(ts2.URL)

	stats, err := c2.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalNodes != 12 || stats.TotalSubnodes != 108 || stats.TotalContributions != 1 {
		t.Errorf("unexpected stats after restore: %+v", stats)
	}

	got, err := c2.GetContribution(ctx, receipt.ContentHash)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.UserID != "integration-user" || got.Context == nil || *got.Context != hybrid {
		t.Errorf("unexpected contribution after restore: %+v", got)
	}

	nodes, err := c2.Subnodes(ctx, "codex:Breath")
	if err != nil {
		t.Fatalf("subnodes failed: %v", err)
	}
	if len(nodes) != 9 {
		t.Errorf("expected 9 subnodes, got %d", len(nodes))
	}
}
