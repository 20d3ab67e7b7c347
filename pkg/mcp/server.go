package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/fractald/pkg/client"
	"github.com/rmax-ai/fractald/pkg/graph"
)

const promptName = "fractal-aware"

// Server adapts fractald to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"fractald",
			graph.StorageVersion,
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"fractal://stats",
		"Fractal Storage Stats",
		mcp.WithResourceDescription("Node counts per fractal level, contribution and user totals"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadStats)

	s.mcpServer.AddResource(mcp.NewResource(
		"fractal://peers",
		"Federation Peers",
		mcp.WithResourceDescription("Known federation peers and their status"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadPeers)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"get_node",
		mcp.WithDescription("Fetch a node by id, e.g. 'codex:Void' or 'codex:Void:symbolic:archetypal'."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node id")),
	), s.handleGetNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"expand_node",
		mcp.WithDescription("Show a base node with its contexts and its nine derivative subnodes."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The id of a level 1 node")),
	), s.handleExpandNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"contribute",
		mcp.WithDescription("Record a contribution to a node. Returns the content hash."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node the contribution is about")),
		mcp.WithString("content", mcp.Description("The contribution text")),
		mcp.WithString("actor", mcp.Description("Contributing user (default anonymous)")),
		mcp.WithNumber("resonance", mcp.Description("Resonance score (default 0.5)")),
		mcp.WithString("context", mcp.Description("Context value such as 'scientific:empirical'")),
	), s.handleContribute)

	s.mcpServer.AddTool(mcp.NewTool(
		"find_contribution",
		mcp.WithDescription("Look up a contribution by its SHA-256 content hash."),
		mcp.WithString("hash", mcp.Required(), mcp.Description("Hex-encoded content hash")),
	), s.handleFindContribution)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		promptName,
		mcp.WithPromptDescription("Explains fractal levels, context lenses and contributions"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func apiErrorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("Not found: %v", err))
	case errors.Is(err, client.ErrBadRequest):
		return mcp.NewToolResultError(fmt.Sprintf("Rejected: %v", err))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err))
	}
}

func (s *Server) handleReadStats(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := s.apiClient.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}
	return jsonResource(request.Params.URI, stats)
}

func (s *Server) handleReadPeers(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	peers, err := s.apiClient.Peers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch peers: %w", err)
	}
	return jsonResource(request.Params.URI, peers)
}

func (s *Server) handleGetNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "node_id", "")
	if id == "" {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	node, err := s.apiClient.GetNode(ctx, id)
	if err != nil {
		return apiErrorResult(err), nil
	}
	return jsonResult(node)
}

func (s *Server) handleExpandNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "node_id", "")
	if id == "" {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	exp, err := s.apiClient.Expand(ctx, id)
	if err != nil {
		return apiErrorResult(err), nil
	}
	return jsonResult(exp)
}

func (s *Server) handleContribute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := client.Contribution{
		NodeID:  mcp.ParseString(request, "node_id", ""),
		Content: mcp.ParseString(request, "content", ""),
		Actor:   mcp.ParseString(request, "actor", ""),
	}
	if in.NodeID == "" {
		return mcp.NewToolResultError("node_id is required"), nil
	}

	args := request.GetArguments()
	if _, ok := args["resonance"]; ok {
		r := mcp.ParseFloat64(request, "resonance", graph.DefaultResonance)
		in.Resonance = &r
	}
	if raw := mcp.ParseString(request, "context", ""); raw != "" {
		c, err := graph.ParseContext(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid context: %v", err)), nil
		}
		in.Context = &c
	}

	receipt, err := s.apiClient.Contribute(ctx, in)
	if err != nil {
		return apiErrorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Accepted: id=%s hash=%s resonance=%g", receipt.ID, receipt.ContentHash, receipt.Resonance)), nil
}

func (s *Server) handleFindContribution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash := mcp.ParseString(request, "hash", "")
	if hash == "" {
		return mcp.NewToolResultError("hash is required"), nil
	}
	c, err := s.apiClient.GetContribution(ctx, hash)
	if err != nil {
		return apiErrorResult(err), nil
	}
	return jsonResult(c)
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != promptName {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with fractald, a federated fractal knowledge graph.

Concepts:
- Base node (level 1): a core concept such as 'codex:Void' or 'codex:Flow'.
- Context: a lens written 'family:value'. Families are scientific (empirical, theoretical, experimental), symbolic (archetypal, cultural, personal) and physical-state (phase, flow, coherence).
- Subnode (level 2): the view of a base node through one context, with id '<base>:<family>:<value>'.
- Contribution: an append-only note attached to a node, addressed by the SHA-256 hash of its content.

Use 'expand_node' to explore a concept through all nine lenses, 'get_node' for a single node,
'contribute' to record an insight and 'find_contribution' to retrieve one by hash.
`

	return mcp.NewGetPromptResult(
		promptName,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
