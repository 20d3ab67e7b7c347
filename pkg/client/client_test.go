package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/fractald/pkg/api"
	"github.com/rmax-ai/fractald/pkg/graph"
)

func newTestDaemon(t *testing.T) (*Client, *graph.Store) {
	t.Helper()
	st := graph.NewStore()
	require.NoError(t, st.Seed())
	srv := httptest.NewServer(api.NewServer(st, nil, "", nil).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL).WithRetry(NoRetry), st
}

func fastRetry(n int) RetryPolicy {
	return RetryPolicy{MaxRetries: n, Initial: time.Millisecond, Max: 5 * time.Millisecond}
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	assert.Equal(t, DefaultEndpoint, NewClient("").Endpoint())
}

func TestClient_ReadEndpoints(t *testing.T) {
	c, _ := newTestDaemon(t)
	ctx := context.Background()

	status, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 120, status.Nodes)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalNodes)

	node, err := c.GetNode(ctx, "codex:Pattern")
	require.NoError(t, err)
	assert.Equal(t, graph.FlowCrystalline, node.FlowState)
	assert.Equal(t, 9, node.SubnodeCount)

	exp, err := c.Expand(ctx, "codex:Pattern")
	require.NoError(t, err)
	assert.Len(t, exp.Derivatives, 9)

	subnodes, err := c.Subnodes(ctx, "codex:Pattern")
	require.NoError(t, err)
	assert.Len(t, subnodes, 9)

	nodes, err := c.NodesByFamily(ctx, "symbolic")
	require.NoError(t, err)
	assert.Len(t, nodes, 12)

	levels, err := c.Levels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, levels.FractalLevels)

	peers, err := c.Peers(ctx)
	require.NoError(t, err)
	assert.Len(t, peers, 3)
}

func TestClient_ContributeAndLookup(t *testing.T) {
	c, _ := newTestDaemon(t)
	ctx := context.Background()

	resonance := 0.7
	hybrid, err := graph.NewHybrid(
		graph.MustContext(graph.FamilyScientific, graph.ValueTheoretical),
		graph.MustContext(graph.FamilyPhysicalState, graph.ValuePhase),
	)
	require.NoError(t, err)

	receipt, err := c.Contribute(ctx, Contribution{
		Actor:     "bob",
		NodeID:    "codex:Emergence",
		Content:   "novelty arises",
		Resonance: &resonance,
		Context:   &hybrid,
	})
	require.NoError(t, err)
	assert.Equal(t, graph.ContentHash("novelty arises"), receipt.ContentHash)

	got, err := c.GetContribution(ctx, receipt.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.UserID)
	require.NotNil(t, got.Context)
	assert.Equal(t, hybrid, *got.Context)

	byNode, err := c.ContributionsByNode(ctx, "codex:Emergence")
	require.NoError(t, err)
	assert.Len(t, byNode, 1)

	byUser, err := c.ContributionsByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	outbox, err := c.Outbox(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, outbox.TotalItems)
	require.Len(t, outbox.OrderedItems, 1)
	assert.Equal(t, "novelty arises", outbox.OrderedItems[0].Object.Content)

	var buf bytes.Buffer
	require.NoError(t, c.Export(ctx, &buf, ExportOptions{UserID: "bob"}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestClient_Errors(t *testing.T) {
	c, _ := newTestDaemon(t)
	ctx := context.Background()

	_, err := c.GetNode(ctx, "codex:Nothing")
	assert.ErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not_found", apiErr.Code)

	_, err = c.Expand(ctx, "codex:Void:symbolic:personal")
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = c.NodesByFamily(ctx, "hybrid")
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = c.GetContribution(ctx, graph.ContentHash("nothing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Contribute(ctx, Contribution{Content: "orphaned"})
	assert.Error(t, err)

	receipt, err := c.Contribute(ctx, Contribution{NodeID: "codex:Void"})
	require.NoError(t, err)
	assert.Equal(t, graph.ContentHash(""), receipt.ContentHash)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","nodes":1}`))
	}))
	defer server.Close()

	c := NewClient(server.URL).WithRetry(fastRetry(3))
	status, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Nodes)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal_error"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL).WithRetry(fastRetry(2))
	_, err := c.Stats(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "internal_error", apiErr.Code)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL).WithRetry(fastRetry(3))
	_, err := c.GetContribution(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ContextCanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(server.URL).WithRetry(RetryPolicy{MaxRetries: 5, Initial: time.Second, Max: time.Second})
	_, err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
