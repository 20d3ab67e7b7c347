package graph

import (
	"fmt"
	"time"
)

// Snapshot is a point-in-time copy of the node table and the ledger. The
// context index and the stats are derived and are rebuilt on Restore.
type Snapshot struct {
	TakenAt       time.Time      `json:"takenAt"`
	Nodes         []Node         `json:"nodes"`
	Contributions []Contribution `json:"contributions"`
}

// Snapshot copies the node table and the ledger under read locks, so the two
// halves are consistent with each other.
func (s *Store) Snapshot() Snapshot {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	snap := Snapshot{
		TakenAt:       s.now(),
		Nodes:         make([]Node, 0, len(s.nodes)),
		Contributions: make([]Contribution, 0, len(s.ledger.entries)),
	}
	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, n.Clone())
	}
	sortNodes(snap.Nodes)
	for _, c := range s.ledger.entries {
		snap.Contributions = append(snap.Contributions, c.clone())
	}
	return snap
}

// Restore replaces the whole store with the content of snap. Every node and
// contribution is validated first; on error the store is left untouched.
// Timestamps are kept as recorded.
func (s *Store) Restore(snap Snapshot) error {
	nodes := make(map[string]Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		n = n.Clone()
		n.Contexts = normalizeContexts(n.Contexts)
		if err := n.Validate(); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		nodes[n.ID] = n
	}
	l := newLedger()
	for _, c := range snap.Contributions {
		nc := NewContribution{NodeID: c.NodeID, UserID: c.UserID, Content: c.Content, Resonance: &c.Resonance, Context: c.Context}
		if err := validateContribution(nc); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if c.ID == "" {
			return fmt.Errorf("restore: %w: id is required", ErrInvalidContribution)
		}
		if _, dup := l.byID[c.ID]; dup {
			return fmt.Errorf("restore: %w: duplicate id %s", ErrInvalidContribution, c.ID)
		}
		l.append(c.clone())
	}

	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.nodes = nodes
	s.index = make(map[Context]map[string]struct{})
	for id, n := range nodes {
		for _, c := range n.Contexts {
			s.indexLocked(c, id)
		}
	}
	s.ledger = l
	s.stats = s.recomputeStatsLocked()
	s.stats.touch(snap.TakenAt)
	return nil
}
