package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/fractald/pkg/api"
	"github.com/rmax-ai/fractald/pkg/client"
	"github.com/rmax-ai/fractald/pkg/graph"
)

func newTestEndpoint(t *testing.T) string {
	t.Helper()
	st := graph.NewStore()
	require.NoError(t, st.Seed())
	ts := httptest.NewServer(api.NewServer(st, nil, "", nil).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func execute(t *testing.T, endpoint string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--endpoint", endpoint}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	endpoint := newTestEndpoint(t)

	out, err := execute(t, endpoint, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Base nodes:")
	assert.Contains(t, out, "12")

	out, err = execute(t, endpoint, "stats", "--json")
	require.NoError(t, err)
	var stats graph.StorageStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 12, stats.TotalNodes)
	assert.Equal(t, 108, stats.TotalSubnodes)
}

func TestNodeCommands(t *testing.T) {
	endpoint := newTestEndpoint(t)

	out, err := execute(t, endpoint, "node", "codex:Void")
	require.NoError(t, err)
	assert.Contains(t, out, "Name:       Void")
	assert.Contains(t, out, "Subnodes:   9")

	out, err = execute(t, endpoint, "expand", "codex:Void")
	require.NoError(t, err)
	assert.Contains(t, out, "codex:Void:scientific:empirical")

	out, err = execute(t, endpoint, "subnodes", "codex:Flow", "--json")
	require.NoError(t, err)
	var nodes []graph.Node
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	assert.Len(t, nodes, 9)

	out, err = execute(t, endpoint, "family", "water")
	require.NoError(t, err)
	assert.Contains(t, out, "codex:Breath")

	out, err = execute(t, endpoint, "levels")
	require.NoError(t, err)
	assert.Contains(t, out, "LEVEL")

	_, err = execute(t, endpoint, "node", "codex:Nothing")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestContributeAndList(t *testing.T) {
	endpoint := newTestEndpoint(t)

	out, err := execute(t, endpoint, "contribute", "codex:Void", "the void hums",
		"--actor", "alice", "--resonance", "0.9", "--context", "scientific:empirical", "--json")
	require.NoError(t, err)
	var receipt graph.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	assert.Equal(t, graph.ContentHash("the void hums"), receipt.ContentHash)
	assert.InDelta(t, 0.9, receipt.Resonance, 1e-9)

	out, err = execute(t, endpoint, "contributions", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "the void hums")

	out, err = execute(t, endpoint, "contribution", receipt.ContentHash)
	require.NoError(t, err)
	assert.Contains(t, out, "alice")

	out, err = execute(t, endpoint, "outbox", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "codex:Void")

	out, err = execute(t, endpoint, "peers")
	require.NoError(t, err)
	assert.Contains(t, out, "python")
}

func TestContributeRejectsBadContext(t *testing.T) {
	endpoint := newTestEndpoint(t)

	_, err := execute(t, endpoint, "contribute", "codex:Void", "x", "--context", "scientific:mystical")
	require.ErrorIs(t, err, graph.ErrInvalidContext)
}

func TestContributionsRequiresOneFilter(t *testing.T) {
	endpoint := newTestEndpoint(t)

	_, err := execute(t, endpoint, "contributions")
	require.Error(t, err)
	_, err = execute(t, endpoint, "contributions", "--node", "a", "--user", "b")
	require.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	endpoint := newTestEndpoint(t)
	_, err := execute(t, endpoint, "contribute", "codex:Field", "field notes", "--actor", "bob")
	require.NoError(t, err)

	out, err := execute(t, endpoint, "export", "--user", "bob")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,node_id,user_id"))

	path := filepath.Join(t.TempDir(), "nodes.csv")
	_, err = execute(t, endpoint, "export", "--type", "nodes", "--level", "1", "-o", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 13)

	_, err = execute(t, endpoint, "export", "--from", "yesterday")
	require.Error(t, err)
}
