package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// DefaultResonance is assigned to contributions submitted without one.
const DefaultResonance = 0.5

// ContentHash returns the hex encoded SHA-256 digest of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ledger is the append-only contribution table. Entries are never modified;
// the secondary indexes hold positions into entries in append order.
type ledger struct {
	entries []Contribution
	byID    map[string]int
	byHash  map[string][]int
	byNode  map[string][]int
	byUser  map[string][]int
}

func newLedger() *ledger {
	return &ledger{
		byID:   make(map[string]int),
		byHash: make(map[string][]int),
		byNode: make(map[string][]int),
		byUser: make(map[string][]int),
	}
}

func (l *ledger) append(c Contribution) {
	pos := len(l.entries)
	l.entries = append(l.entries, c)
	l.byID[c.ID] = pos
	h := c.Hash()
	l.byHash[h] = append(l.byHash[h], pos)
	l.byNode[c.NodeID] = append(l.byNode[c.NodeID], pos)
	l.byUser[c.UserID] = append(l.byUser[c.UserID], pos)
}

func (l *ledger) collect(positions []int) []Contribution {
	out := make([]Contribution, 0, len(positions))
	for _, pos := range positions {
		out = append(out, l.entries[pos].clone())
	}
	return out
}

func validateContribution(nc NewContribution) error {
	if strings.TrimSpace(nc.NodeID) == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalidContribution)
	}
	if strings.TrimSpace(nc.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidContribution)
	}
	if nc.Resonance != nil && (math.IsNaN(*nc.Resonance) || math.IsInf(*nc.Resonance, 0)) {
		return fmt.Errorf("%w: resonance must be a finite number", ErrInvalidContribution)
	}
	if nc.Context != nil {
		if err := nc.Context.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidContribution, err)
		}
	}
	return nil
}

// CreateContribution appends a contribution to the ledger. The node id is a
// weak reference and is not checked against the node table.
func (s *Store) CreateContribution(nc NewContribution) (Receipt, error) {
	if err := validateContribution(nc); err != nil {
		return Receipt{}, err
	}

	c := Contribution{
		ID:        uuid.NewString(),
		NodeID:    nc.NodeID,
		UserID:    nc.UserID,
		Content:   nc.Content,
		Resonance: DefaultResonance,
	}
	if nc.Resonance != nil {
		c.Resonance = *nc.Resonance
	}
	if nc.Context != nil {
		ctx := *nc.Context
		c.Context = &ctx
	}

	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	c.Timestamp = s.now()
	s.ledger.append(c)
	s.stats.addContribution(c)

	return Receipt{
		ID:          c.ID,
		ContentHash: c.Hash(),
		NodeID:      c.NodeID,
		Resonance:   c.Resonance,
		Timestamp:   c.Timestamp,
	}, nil
}

// GetContributionByHash returns the first stored contribution whose content
// hashes to hash.
func (s *Store) GetContributionByHash(hash string) (Contribution, error) {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	positions := s.ledger.byHash[strings.ToLower(hash)]
	if len(positions) == 0 {
		return Contribution{}, fmt.Errorf("contribution %s: %w", hash, ErrNotFound)
	}
	return s.ledger.entries[positions[0]].clone(), nil
}

// GetContributionsByHash returns every contribution with the given content
// hash in append order.
func (s *Store) GetContributionsByHash(hash string) []Contribution {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	return s.ledger.collect(s.ledger.byHash[strings.ToLower(hash)])
}

// GetContribution looks a contribution up by its id.
func (s *Store) GetContribution(id string) (Contribution, error) {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	pos, ok := s.ledger.byID[id]
	if !ok {
		return Contribution{}, fmt.Errorf("contribution %s: %w", id, ErrNotFound)
	}
	return s.ledger.entries[pos].clone(), nil
}

// GetContributionsByNode returns the contributions targeting nodeID in
// append order.
func (s *Store) GetContributionsByNode(nodeID string) []Contribution {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	return s.ledger.collect(s.ledger.byNode[nodeID])
}

// GetContributionsByUser returns the contributions made by userID in append
// order.
func (s *Store) GetContributionsByUser(userID string) []Contribution {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	return s.ledger.collect(s.ledger.byUser[userID])
}

// RecentContributions returns up to n contributions, newest first. A
// non-positive n returns all of them.
func (s *Store) RecentContributions(n int) []Contribution {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	total := len(s.ledger.entries)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]Contribution, 0, n)
	for i := total - 1; i >= total-n; i-- {
		out = append(out, s.ledger.entries[i].clone())
	}
	return out
}

// Contributions returns the whole ledger in append order.
func (s *Store) Contributions() []Contribution {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	out := make([]Contribution, 0, len(s.ledger.entries))
	for _, c := range s.ledger.entries {
		out = append(out, c.clone())
	}
	return out
}
