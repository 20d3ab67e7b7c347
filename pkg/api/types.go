package api

import (
	"time"

	"github.com/rmax-ai/fractald/pkg/federation"
	"github.com/rmax-ai/fractald/pkg/graph"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ServiceInfo matches the response for GET /
type ServiceInfo struct {
	Name          string              `json:"name"`
	Version       string              `json:"version"`
	Status        string              `json:"status"`
	FractalLevels []int               `json:"fractal_levels"`
	Endpoints     map[string][]string `json:"endpoints"`
}

// HealthResponse matches the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Nodes  int    `json:"nodes"`
}

// ContributionList matches the response for the per-node and per-user listings
type ContributionList struct {
	Contributions []graph.Contribution `json:"contributions"`
	Count         int                  `json:"count"`
}

// InboxActivity matches the POST /inbox body schema. Only Create is accepted.
type InboxActivity struct {
	Context interface{}  `json:"@context,omitempty"`
	Type    string       `json:"type" validate:"required,eq=Create"`
	Actor   string       `json:"actor,omitempty" validate:"omitempty,max=2048"`
	Object  *InboxObject `json:"object" validate:"required"`
}

// InboxObject is the contribution carried by an inbox activity
type InboxObject struct {
	NodeID         string         `json:"nodeId" validate:"required,max=512"`
	Content        string         `json:"content"`
	Resonance      *float64       `json:"resonance,omitempty"`
	FractalContext *graph.Context `json:"fractalContext,omitempty"`
}

// InboxResponse matches the response for POST /inbox
type InboxResponse struct {
	Status string        `json:"status"`
	Result graph.Receipt `json:"result"`
}

// NodeView is a stored node annotated with its position in the hierarchy
type NodeView struct {
	graph.Node
	FractalContext     string `json:"fractal_context"`
	ExpansionAvailable bool   `json:"expansion_available"`
	SubnodeCount       int    `json:"subnode_count,omitempty"`
	ParentContext      string `json:"parent_context,omitempty"`
}

// SubnodesResponse matches the response for GET /fractal/subnodes/{nodeID}
type SubnodesResponse struct {
	NodeID   string       `json:"node_id"`
	Subnodes []graph.Node `json:"subnodes"`
	Count    int          `json:"count"`
}

// FamilyResponse matches the response for GET /fractal/context/{family}
type FamilyResponse struct {
	Context     string       `json:"context"`
	Nodes       []graph.Node `json:"nodes"`
	Count       int          `json:"count"`
	Description string       `json:"description"`
}

// LevelStatistics describes one populated fractal level
type LevelStatistics struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// LevelsResponse matches the response for GET /fractal/levels
type LevelsResponse struct {
	FractalLevels       []int                      `json:"fractal_levels"`
	CurrentMaxLevel     int                        `json:"current_max_level"`
	LevelDescriptions   map[int]string             `json:"level_descriptions"`
	LevelStatistics     map[string]LevelStatistics `json:"level_statistics"`
	ExpansionDimensions map[string]string          `json:"expansion_dimensions"`
	ExpansionFamilies   int                        `json:"expansion_families"`
}

// Link is a WebFinger link relation
type Link struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

// WebFinger matches the response for GET /.well-known/webfinger
type WebFinger struct {
	Subject string `json:"subject"`
	Links   []Link `json:"links"`
}

// FractalCapabilities advertises what this node can expand
type FractalCapabilities struct {
	Levels    []int    `json:"levels"`
	Contexts  []string `json:"contexts"`
	Expansion bool     `json:"expansion"`
}

// Actor matches the response for GET /actor
type Actor struct {
	Context             string              `json:"@context"`
	ID                  string              `json:"id"`
	Type                string              `json:"type"`
	Name                string              `json:"name"`
	Summary             string              `json:"summary"`
	Inbox               string              `json:"inbox"`
	Outbox              string              `json:"outbox"`
	PreferredUsername   string              `json:"preferredUsername"`
	FractalCapabilities FractalCapabilities `json:"fractal_capabilities"`
}

// OutboxNote is the object of an outbox activity
type OutboxNote struct {
	Type           string         `json:"type"`
	NodeID         string         `json:"nodeId"`
	Content        string         `json:"content"`
	Resonance      float64        `json:"resonance"`
	FractalContext *graph.Context `json:"fractalContext,omitempty"`
	Hash           string         `json:"hash"`
}

// OutboxActivity wraps one contribution as a Create activity
type OutboxActivity struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Actor     string     `json:"actor"`
	Published time.Time  `json:"published"`
	Object    OutboxNote `json:"object"`
}

// Outbox matches the response for GET /outbox
type Outbox struct {
	Context      string           `json:"@context"`
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	TotalItems   int              `json:"totalItems"`
	OrderedItems []OutboxActivity `json:"orderedItems"`
}

// PeersResponse matches the response for GET /federation/peers
type PeersResponse struct {
	Peers []federation.Peer `json:"peers"`
}

// SyncResponse matches the response for GET /federation/sync
type SyncResponse struct {
	Synced              bool      `json:"synced"`
	Timestamp           time.Time `json:"timestamp"`
	FractalLevelsSynced []int     `json:"fractal_levels_synced"`
}
