package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/rmax-ai/fractald/pkg/federation"
	"github.com/rmax-ai/fractald/pkg/graph"
)

var (
	// ErrNotFound is wrapped by APIError for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest is wrapped by APIError for 400 responses.
	ErrBadRequest = errors.New("bad request")
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("fractald: %d %s: %s", e.StatusCode, e.Code, e.Details)
	}
	return fmt.Sprintf("fractald: %d %s", e.StatusCode, e.Code)
}

// Unwrap lets callers test 404 and 400 responses with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 404:
		return ErrNotFound
	case 400:
		return ErrBadRequest
	default:
		return nil
	}
}

// Status represents the health check response.
type Status struct {
	// Status is the health status string (e.g. "ok").
	Status string `json:"status"`
	// Nodes is the number of stored nodes across all levels.
	Nodes int `json:"nodes"`
}

// Contribution is the input to Contribute.
type Contribution struct {
	// Actor is the contributing user. Empty means anonymous.
	Actor   string
	NodeID  string
	Content string
	// Resonance defaults to 0.5 on the server when nil.
	Resonance *float64
	Context   *graph.Context
}

// NodeView is a node with its hierarchy annotations.
type NodeView struct {
	graph.Node
	FractalContext     string `json:"fractal_context"`
	ExpansionAvailable bool   `json:"expansion_available"`
	SubnodeCount       int    `json:"subnode_count,omitempty"`
	ParentContext      string `json:"parent_context,omitempty"`
}

// LevelStatistics describes one populated fractal level.
type LevelStatistics struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// Levels is the fractal level summary.
type Levels struct {
	FractalLevels       []int                      `json:"fractal_levels"`
	CurrentMaxLevel     int                        `json:"current_max_level"`
	LevelDescriptions   map[int]string             `json:"level_descriptions"`
	LevelStatistics     map[string]LevelStatistics `json:"level_statistics"`
	ExpansionDimensions map[string]string          `json:"expansion_dimensions"`
}

// OutboxItem is one Create activity from the outbox.
type OutboxItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Actor     string    `json:"actor"`
	Published time.Time `json:"published"`
	Object    struct {
		NodeID         string         `json:"nodeId"`
		Content        string         `json:"content"`
		Resonance      float64        `json:"resonance"`
		FractalContext *graph.Context `json:"fractalContext,omitempty"`
		Hash           string         `json:"hash"`
	} `json:"object"`
}

// Outbox is the ordered collection of recent contributions.
type Outbox struct {
	TotalItems   int          `json:"totalItems"`
	OrderedItems []OutboxItem `json:"orderedItems"`
}

// ExportOptions narrows a CSV export.
type ExportOptions struct {
	// Type is "contributions" (default) or "nodes".
	Type   string
	NodeID string
	UserID string
	Level  int
	From   time.Time
	To     time.Time
}

type contributionList struct {
	Contributions []graph.Contribution `json:"contributions"`
	Count         int                  `json:"count"`
}

type subnodesResponse struct {
	Subnodes []graph.Node `json:"subnodes"`
}

type familyResponse struct {
	Nodes []graph.Node `json:"nodes"`
}

type peersResponse struct {
	Peers []federation.Peer `json:"peers"`
}

type inboxObject struct {
	NodeID         string         `json:"nodeId"`
	Content        string         `json:"content"`
	Resonance      *float64       `json:"resonance,omitempty"`
	FractalContext *graph.Context `json:"fractalContext,omitempty"`
}

type inboxActivity struct {
	Context string      `json:"@context"`
	Type    string      `json:"type"`
	Actor   string      `json:"actor,omitempty"`
	Object  inboxObject `json:"object"`
}

type inboxResponse struct {
	Status string        `json:"status"`
	Result graph.Receipt `json:"result"`
}
