package graph

import (
	"encoding/json"
	"fmt"
	"time"
)

// StorageVersion is reported in StorageStats.
const StorageVersion = "3.0.0"

// statsState holds the incrementally maintained counters behind Stats. It is
// guarded by Store.statsMu.
type statsState struct {
	levels            map[int]int
	nodeBytes         map[string]int64
	nodeBytesTotal    int64
	contributions     int
	contributionBytes int64
	users             map[string]int
	lastUpdated       time.Time
}

func newStatsState() *statsState {
	return &statsState{
		levels:    make(map[int]int),
		nodeBytes: make(map[string]int64),
		users:     make(map[string]int),
	}
}

func (st *statsState) addNode(n Node, now time.Time) {
	size := encodedSize(n)
	st.levels[n.FractalLevel]++
	st.nodeBytes[n.ID] = size
	st.nodeBytesTotal += size
	st.touch(now)
}

func (st *statsState) removeNode(n Node) {
	st.levels[n.FractalLevel]--
	if st.levels[n.FractalLevel] <= 0 {
		delete(st.levels, n.FractalLevel)
	}
	st.nodeBytesTotal -= st.nodeBytes[n.ID]
	delete(st.nodeBytes, n.ID)
}

func (st *statsState) addContribution(c Contribution) {
	st.contributions++
	st.contributionBytes += encodedSize(c)
	st.users[c.UserID]++
	st.touch(c.Timestamp)
}

func (st *statsState) touch(now time.Time) {
	if now.After(st.lastUpdated) {
		st.lastUpdated = now
	}
}

func (st *statsState) snapshot() StorageStats {
	out := StorageStats{
		Version:            StorageVersion,
		TotalNodes:         st.levels[LevelBase],
		TotalContributions: st.contributions,
		TotalUsers:         len(st.users),
		TotalSize:          st.nodeBytesTotal + st.contributionBytes,
		LevelBreakdown:     make(map[int]int, len(st.levels)),
		LastUpdated:        st.lastUpdated,
		Expansion:          expansionMeta(),
	}
	for level, count := range st.levels {
		out.LevelBreakdown[level] = count
		if level > LevelBase {
			out.TotalSubnodes += count
		}
		if level > out.FractalLevel {
			out.FractalLevel = level
		}
	}
	return out
}

func expansionMeta() ExpansionMeta {
	meta := ExpansionMeta{TotalDimensions: len(BaseFamilies())}
	for _, f := range BaseFamilies() {
		meta.Contexts = append(meta.Contexts, string(f))
	}
	return meta
}

// encodedSize is the length of the JSON encoding of v. Validated nodes and
// contributions always encode.
func encodedSize(v any) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}

// Stats returns the current counters.
func (s *Store) Stats() StorageStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats.snapshot()
}

// recomputeStatsLocked rebuilds the counters from the node table and the
// ledger. Must be called with nodeMu and ledgerMu held.
func (s *Store) recomputeStatsLocked() *statsState {
	st := newStatsState()
	for _, n := range s.nodes {
		st.addNode(n, n.UpdatedAt)
	}
	for _, c := range s.ledger.entries {
		st.addContribution(c)
	}
	return st
}

// CheckInvariants verifies that the context index matches the node table,
// that the ledger indexes match the ledger, and that the incremental stats
// agree with a full recomputation. A non-nil result wraps
// ErrInvariantViolation and means the store is corrupt.
func (s *Store) CheckInvariants() error {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	for id, n := range s.nodes {
		if n.ID != id {
			return violation("node stored under %s has id %s", id, n.ID)
		}
		if err := n.checkLineage(); err != nil {
			return violation("%v", err)
		}
		for _, c := range n.Contexts {
			if _, ok := s.index[c][id]; !ok {
				return violation("node %s carries %s but is missing from its index entry", id, c)
			}
		}
	}
	for c, ids := range s.index {
		if len(ids) == 0 {
			return violation("empty index entry for %s", c)
		}
		for id := range ids {
			n, ok := s.nodes[id]
			if !ok {
				return violation("index entry %s references missing node %s", c, id)
			}
			if !n.HasContext(c) {
				return violation("index entry %s references node %s which does not carry it", c, id)
			}
		}
	}

	if err := s.checkLedgerLocked(); err != nil {
		return err
	}

	want := s.recomputeStatsLocked()
	got := s.stats
	if len(want.levels) != len(got.levels) {
		return violation("level breakdown has %d levels, recomputed %d", len(got.levels), len(want.levels))
	}
	for level, count := range want.levels {
		if got.levels[level] != count {
			return violation("level %d count is %d, recomputed %d", level, got.levels[level], count)
		}
	}
	if got.nodeBytesTotal != want.nodeBytesTotal {
		return violation("node size is %d, recomputed %d", got.nodeBytesTotal, want.nodeBytesTotal)
	}
	if got.contributions != want.contributions || got.contributionBytes != want.contributionBytes {
		return violation("contribution totals drifted")
	}
	if len(got.users) != len(want.users) {
		return violation("user count is %d, recomputed %d", len(got.users), len(want.users))
	}
	return nil
}

func (s *Store) checkLedgerLocked() error {
	l := s.ledger
	if len(l.byID) != len(l.entries) {
		return violation("ledger has %d entries but %d ids", len(l.entries), len(l.byID))
	}
	seen := 0
	for hash, positions := range l.byHash {
		prev := -1
		for _, pos := range positions {
			if pos <= prev || pos >= len(l.entries) {
				return violation("hash index for %s is out of order", hash)
			}
			if l.entries[pos].Hash() != hash {
				return violation("hash index for %s points at other content", hash)
			}
			prev = pos
		}
		seen += len(positions)
	}
	if seen != len(l.entries) {
		return violation("hash index covers %d of %d entries", seen, len(l.entries))
	}
	return nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
