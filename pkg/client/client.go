package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rmax-ai/fractald/pkg/federation"
	"github.com/rmax-ai/fractald/pkg/graph"
)

// DefaultEndpoint is used when NewClient is given an empty endpoint.
const DefaultEndpoint = "http://127.0.0.1:8789"

// Client is the fractald SDK client.
type Client struct {
	endpoint string
	http     *http.Client
	retry    RetryPolicy
}

// NewClient creates a new fractald client.
// endpoint defaults to DefaultEndpoint if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: DefaultRetryPolicy(),
	}
}

// WithRetry replaces the retry policy used for reads.
func (c *Client) WithRetry(p RetryPolicy) *Client {
	c.retry = p
	return c
}

// Endpoint returns the base URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	err := c.getJSON(ctx, "/health", &status)
	return status, err
}

// Stats fetches the storage statistics.
func (c *Client) Stats(ctx context.Context) (graph.StorageStats, error) {
	var stats graph.StorageStats
	err := c.getJSON(ctx, "/storage/stats", &stats)
	return stats, err
}

// GetNode fetches a node with its hierarchy annotations.
func (c *Client) GetNode(ctx context.Context, id string) (NodeView, error) {
	var n NodeView
	err := c.getJSON(ctx, "/fractal/nodes/"+url.PathEscape(id), &n)
	return n, err
}

// Expand fetches the expansion of a base node.
func (c *Client) Expand(ctx context.Context, id string) (graph.Expansion, error) {
	var exp graph.Expansion
	err := c.getJSON(ctx, "/fractal/expand/"+url.PathEscape(id), &exp)
	return exp, err
}

// Subnodes fetches the derivatives of a base node.
func (c *Client) Subnodes(ctx context.Context, id string) ([]graph.Node, error) {
	var resp subnodesResponse
	err := c.getJSON(ctx, "/fractal/subnodes/"+url.PathEscape(id), &resp)
	return resp.Subnodes, err
}

// NodesByFamily fetches the nodes tagged with any context of a base family.
func (c *Client) NodesByFamily(ctx context.Context, family string) ([]graph.Node, error) {
	var resp familyResponse
	err := c.getJSON(ctx, "/fractal/context/"+url.PathEscape(family), &resp)
	return resp.Nodes, err
}

// Levels fetches the fractal level summary.
func (c *Client) Levels(ctx context.Context) (Levels, error) {
	var levels Levels
	err := c.getJSON(ctx, "/fractal/levels", &levels)
	return levels, err
}

// Contribute posts a contribution to the inbox as a Create activity.
func (c *Client) Contribute(ctx context.Context, in Contribution) (graph.Receipt, error) {
	if in.NodeID == "" {
		return graph.Receipt{}, fmt.Errorf("invalid contribution: node id is required")
	}

	body, err := json.Marshal(inboxActivity{
		Context: "https://www.w3.org/ns/activitystreams",
		Type:    "Create",
		Actor:   in.Actor,
		Object: inboxObject{
			NodeID:         in.NodeID,
			Content:        in.Content,
			Resonance:      in.Resonance,
			FractalContext: in.Context,
		},
	})
	if err != nil {
		return graph.Receipt{}, fmt.Errorf("failed to marshal activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/inbox", bytes.NewReader(body))
	if err != nil {
		return graph.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/activity+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return graph.Receipt{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return graph.Receipt{}, decodeError(resp)
	}

	var out inboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return graph.Receipt{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Result, nil
}

// GetContribution fetches the first contribution stored with the given
// content hash.
func (c *Client) GetContribution(ctx context.Context, hash string) (graph.Contribution, error) {
	var contribution graph.Contribution
	err := c.getJSON(ctx, "/contributions/"+url.PathEscape(hash), &contribution)
	return contribution, err
}

// ContributionsByNode fetches all contributions to a node in ledger order.
func (c *Client) ContributionsByNode(ctx context.Context, nodeID string) ([]graph.Contribution, error) {
	var list contributionList
	err := c.getJSON(ctx, "/contributions/node/"+url.PathEscape(nodeID), &list)
	return list.Contributions, err
}

// ContributionsByUser fetches all contributions by a user in ledger order.
func (c *Client) ContributionsByUser(ctx context.Context, userID string) ([]graph.Contribution, error) {
	var list contributionList
	err := c.getJSON(ctx, "/contributions/user/"+url.PathEscape(userID), &list)
	return list.Contributions, err
}

// Outbox fetches the most recent contributions, newest first.
func (c *Client) Outbox(ctx context.Context, limit int) (Outbox, error) {
	path := "/outbox"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out Outbox
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// Peers fetches the federation peer directory.
func (c *Client) Peers(ctx context.Context) ([]federation.Peer, error) {
	var resp peersResponse
	err := c.getJSON(ctx, "/federation/peers", &resp)
	return resp.Peers, err
}

// Export streams a CSV export into w.
func (c *Client) Export(ctx context.Context, w io.Writer, opts ExportOptions) error {
	q := url.Values{}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if opts.NodeID != "" {
		q.Set("node_id", opts.NodeID)
	}
	if opts.UserID != "" {
		q.Set("user_id", opts.UserID)
	}
	if opts.Level > 0 {
		q.Set("level", strconv.Itoa(opts.Level))
	}
	if !opts.From.IsZero() {
		q.Set("from", opts.From.Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.Format(time.RFC3339))
	}
	path := "/contributions/export"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// get performs a GET under the client's retry policy. A Retry-After header
// longer than the policy's Max ends the retries early. The caller closes the
// body of a successful response.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	schedule := &hintedBackOff{BackOff: c.retry.backOff()}
	attempt := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		defer resp.Body.Close()

		apiErr := decodeError(resp)
		if !retryableStatus(resp.StatusCode) {
			return nil, backoff.Permanent(apiErr)
		}
		if d, ok := retryAfter(resp, time.Now()); ok {
			if d > c.retry.Max {
				return nil, backoff.Permanent(apiErr)
			}
			schedule.hint = d
		}
		return nil, apiErr
	}
	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(schedule),
		backoff.WithMaxTries(c.retry.tries()),
	)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
