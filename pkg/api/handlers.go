package api

import (
	"net/http"

	"github.com/rmax-ai/fractald/pkg/graph"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceInfo{
		Name:          "fractald",
		Version:       graph.StorageVersion,
		Status:        "active",
		FractalLevels: []int{graph.LevelBase, graph.LevelDerivative},
		Endpoints: map[string][]string{
			"current_level": {
				"/storage/stats",
				"/contributions/{hash}",
				"/contributions/node/{node_id}",
				"/contributions/user/{user_id}",
				"/contributions/export",
				"/inbox",
				"/outbox",
			},
			"next_fractal_level": {
				"/fractal/expand/{node_id}",
				"/fractal/nodes/{node_id}",
				"/fractal/subnodes/{node_id}",
				"/fractal/context/{context}",
				"/fractal/levels",
			},
			"federation": {
				"/.well-known/webfinger",
				"/actor",
				"/federation/peers",
				"/federation/sync",
			},
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Nodes:  stats.TotalNodes + stats.TotalSubnodes,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}
