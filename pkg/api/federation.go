package api

import (
	"net/http"
	"strconv"

	"github.com/rmax-ai/fractald/pkg/graph"
)

const (
	activityStreams  = "https://www.w3.org/ns/activitystreams"
	activityJSON     = "application/activity+json"
	defaultOutboxLen = 20
	maxOutboxLen     = 500
)

func (s *Server) handleWebFinger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, WebFinger{
		Subject: "acct:fractal@" + r.Host,
		Links: []Link{
			{Rel: "self", Type: activityJSON, Href: s.baseURL + "/actor"},
			{Rel: activityStreams + "#inbox", Type: activityJSON, Href: s.baseURL + "/inbox"},
			{Rel: activityStreams + "#outbox", Type: activityJSON, Href: s.baseURL + "/outbox"},
		},
	})
}

func (s *Server) handleActor(w http.ResponseWriter, r *http.Request) {
	families := graph.BaseFamilies()
	contexts := make([]string, len(families))
	for i, f := range families {
		contexts[i] = string(f)
	}
	writeJSON(w, http.StatusOK, Actor{
		Context:           activityStreams,
		ID:                s.baseURL + "/actor",
		Type:              "Service",
		Name:              "fractald",
		Summary:           "Federated fractal knowledge-graph node with context expansion",
		Inbox:             s.baseURL + "/inbox",
		Outbox:            s.baseURL + "/outbox",
		PreferredUsername: "fractal",
		FractalCapabilities: FractalCapabilities{
			Levels:    []int{graph.LevelBase, graph.LevelDerivative},
			Contexts:  contexts,
			Expansion: true,
		},
	})
}

// handleOutbox lists the most recent contributions as Create activities,
// newest first. The limit query parameter bounds the page size.
func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	limit := defaultOutboxLen
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxOutboxLen {
		limit = maxOutboxLen
	}

	recent := s.store.RecentContributions(limit)
	items := make([]OutboxActivity, 0, len(recent))
	for _, c := range recent {
		items = append(items, OutboxActivity{
			ID:        s.baseURL + "/contributions/" + c.Hash(),
			Type:      "Create",
			Actor:     c.UserID,
			Published: c.Timestamp,
			Object: OutboxNote{
				Type:           "Note",
				NodeID:         c.NodeID,
				Content:        c.Content,
				Resonance:      c.Resonance,
				FractalContext: c.Context,
				Hash:           c.Hash(),
			},
		})
	}

	writeJSON(w, http.StatusOK, Outbox{
		Context:      activityStreams,
		ID:           s.baseURL + "/outbox",
		Type:         "OrderedCollection",
		TotalItems:   s.store.Stats().TotalContributions,
		OrderedItems: items,
	})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PeersResponse{Peers: s.peers.Peers(s.peerTTL)})
}

// handleSync reports the levels this node can serve. There is no outbound
// replication.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	levels := make([]int, 0, len(stats.LevelBreakdown))
	for level := 1; level <= stats.FractalLevel; level++ {
		if stats.LevelBreakdown[level] > 0 {
			levels = append(levels, level)
		}
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		Synced:              true,
		Timestamp:           s.now().UTC(),
		FractalLevelsSynced: levels,
	})
}
