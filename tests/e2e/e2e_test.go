package e2e_test

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/fractald/pkg/client"
)

func TestEndToEnd(t *testing.T) {
	if os.Getenv("E2E") != "true" {
		t.Skip("Skipping e2e test")
	}

	endpoint := os.Getenv("FRACTAL_ENDPOINT")
	if endpoint == "" {
		endpoint = client.DefaultEndpoint
	}

	c := client.NewClient(endpoint)

	// Poll Ping until success
	var err error
	for i := 0; i < 30; i++ {
		_, err = c.Ping(context.Background())
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatal("Failed to ping server after 30 seconds")
	}

	before, err := c.Stats(context.Background())
	require.NoError(t, err)

	// Contribute and find it again by hash
	content := "e2e contribution " + time.Now().UTC().Format(time.RFC3339Nano)
	receipt, err := c.Contribute(context.Background(), client.Contribution{
		Actor:   "e2e-user",
		NodeID:  "codex:Void",
		Content: content,
	})
	require.NoError(t, err)

	found, err := c.GetContribution(context.Background(), receipt.ContentHash)
	assert.NoError(t, err)
	assert.Equal(t, content, found.Content)

	after, err := c.Stats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, before.TotalContributions+1, after.TotalContributions)

	// The outbox leads with the newest contribution
	outbox, err := c.Outbox(context.Background(), 1)
	assert.NoError(t, err)
	if assert.Len(t, outbox.OrderedItems, 1) {
		assert.Equal(t, receipt.ContentHash, outbox.OrderedItems[0].Object.Hash)
	}

	// Metrics are served next to the API
	resp, err := http.Get(endpoint + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
