package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/rmax-ai/fractald/pkg/graph"
	"github.com/rmax-ai/fractald/pkg/metrics"
)

var levelDescriptions = map[int]string{
	graph.LevelBase:       "Base nodes - Core concepts of the Living Codex",
	graph.LevelDerivative: "Fractal subnodes - Expanded perspectives across scientific, symbolic, and water-state lenses",
}

var familyDescriptions = map[graph.Family]string{
	graph.FamilyScientific:    "Empirical, theoretical, and experimental perspectives",
	graph.FamilySymbolic:      "Archetypal, cultural, and personal meanings",
	graph.FamilyPhysicalState: "Phase transitions, flow dynamics, and coherence patterns",
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	exp, err := s.store.GetExpansion(chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.ExpansionsTotal.Inc()
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.GetNode(chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := NodeView{Node: n}
	if n.IsBase() {
		subnodes, err := s.store.Subnodes(n.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		view.FractalContext = "base_node"
		view.ExpansionAvailable = true
		view.SubnodeCount = len(subnodes)
	} else {
		view.FractalContext = "subnode"
		view.ParentContext = n.ParentID
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSubnodes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	subnodes, err := s.store.Subnodes(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SubnodesResponse{NodeID: id, Subnodes: subnodes, Count: len(subnodes)})
}

func (s *Server) handleFamily(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "family")
	nodes, err := s.store.NodesByFamily(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []graph.Node{}
	}
	family, _ := graph.ParseFamily(name)
	writeJSON(w, http.StatusOK, FamilyResponse{
		Context:     string(family),
		Nodes:       nodes,
		Count:       len(nodes),
		Description: fmt.Sprintf("All %s lens subnodes across the Living Codex", name),
	})
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()

	levels := make([]int, 0, len(stats.LevelBreakdown))
	statistics := make(map[string]LevelStatistics, len(stats.LevelBreakdown))
	descriptions := make(map[int]string, len(stats.LevelBreakdown))
	for level, count := range stats.LevelBreakdown {
		levels = append(levels, level)
		desc, ok := levelDescriptions[level]
		if !ok {
			desc = fmt.Sprintf("Level %d nodes", level)
		}
		descriptions[level] = desc
		statistics[fmt.Sprintf("level_%d", level)] = LevelStatistics{
			Name:        levelName(level),
			Count:       count,
			Description: desc,
		}
	}
	sort.Ints(levels)

	dimensions := make(map[string]string, len(familyDescriptions))
	for f, desc := range familyDescriptions {
		dimensions[string(f)] = desc
	}

	writeJSON(w, http.StatusOK, LevelsResponse{
		FractalLevels:       levels,
		CurrentMaxLevel:     stats.FractalLevel,
		LevelDescriptions:   descriptions,
		LevelStatistics:     statistics,
		ExpansionDimensions: dimensions,
		ExpansionFamilies:   stats.Expansion.TotalDimensions,
	})
}

func levelName(level int) string {
	switch level {
	case graph.LevelBase:
		return "Base Nodes"
	case graph.LevelDerivative:
		return "Fractal Subnodes"
	default:
		return fmt.Sprintf("Level %d", level)
	}
}
