package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the in-memory fractal store. It owns four tables, each behind its
// own lock. Operations that touch several tables acquire the locks in the
// order nodes, index, ledger, stats and hold all of them until every table
// has been updated, so readers never observe a partial write.
type Store struct {
	nodeMu sync.RWMutex
	nodes  map[string]Node

	indexMu sync.RWMutex
	index   map[Context]map[string]struct{}

	ledgerMu sync.RWMutex
	ledger   *ledger

	statsMu sync.RWMutex
	stats   *statsState

	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for registration and seeding events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source. Tests use it to get stable timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		nodes:  make(map[string]Node),
		index:  make(map[Context]map[string]struct{}),
		ledger: newLedger(),
		stats:  newStatsState(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put inserts or replaces a node. CreatedAt survives a replace, UpdatedAt is
// always bumped, and the context index is moved from the old context set to
// the new one in the same critical section.
func (s *Store) Put(n Node) (Node, error) {
	n = n.Clone()
	n.Contexts = normalizeContexts(n.Contexts)
	if err := n.Validate(); err != nil {
		return Node{}, err
	}

	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stored := s.putLocked(n, s.now())
	return stored.Clone(), nil
}

// putLocked writes n and keeps the index and stats in step with it.
// Must be called with nodeMu, indexMu and statsMu held for writing.
func (s *Store) putLocked(n Node, now time.Time) Node {
	old, exists := s.nodes[n.ID]
	switch {
	case exists:
		n.CreatedAt = old.CreatedAt
	case n.CreatedAt.IsZero():
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	if exists {
		for _, c := range old.Contexts {
			if !n.HasContext(c) {
				s.unindexLocked(c, n.ID)
			}
		}
		s.stats.removeNode(old)
	}
	for _, c := range n.Contexts {
		s.indexLocked(c, n.ID)
	}

	s.nodes[n.ID] = n
	s.stats.addNode(n, now)
	return n
}

// Get returns a copy of the node with the given id.
func (s *Store) Get(id string) (Node, bool) {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// GetNode is Get with a NotFound error for missing ids.
func (s *Store) GetNode(id string) (Node, error) {
	n, ok := s.Get(id)
	if !ok {
		return Node{}, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	return n, nil
}

// List returns copies of every node, ordered by id.
func (s *Store) List() []Node {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()

	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.Clone())
	}
	sortNodes(out)
	return out
}

// Delete removes a node and its own index entries. Derivatives of a deleted
// base node are left in place.
func (s *Store) Delete(id string) error {
	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	for _, c := range n.Contexts {
		s.unindexLocked(c, id)
	}
	delete(s.nodes, id)
	s.stats.removeNode(n)
	s.stats.touch(s.now())
	return nil
}

// AddContext tags a base node with one more context.
func (s *Store) AddContext(id string, c Context) (Node, error) {
	if err := c.Validate(); err != nil {
		return Node{}, err
	}

	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if !n.IsBase() {
		return Node{}, fmt.Errorf("%w: %s: contexts attach to base nodes only", ErrInvalidNode, id)
	}
	if n.HasContext(c) {
		return n.Clone(), nil
	}

	n = n.Clone()
	n.Contexts = normalizeContexts(append(n.Contexts, c))
	return s.putLocked(n, s.now()).Clone(), nil
}

// RegisterBase expands a base node and stores it together with its nine
// derivatives and their index entries. Expansion runs before any lock is
// taken; once the locks are held nothing can fail, so either every part of
// the registration lands or none does.
func (s *Store) RegisterBase(base Node) (ExpansionResult, error) {
	if base.FractalLevel == 0 {
		base.FractalLevel = LevelBase
	}
	if base.FractalLevel != LevelBase {
		return ExpansionResult{}, fmt.Errorf("%w: %s is at level %d", ErrInvalidExpansionTarget, base.ID, base.FractalLevel)
	}
	if err := base.Validate(); err != nil {
		return ExpansionResult{}, err
	}
	res, err := Expand(base)
	if err != nil {
		return ExpansionResult{}, err
	}

	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	now := s.now()
	out := ExpansionResult{Derivatives: make([]Node, 0, len(res.Derivatives))}
	out.Base = s.putLocked(res.Base, now).Clone()
	for _, d := range res.Derivatives {
		out.Derivatives = append(out.Derivatives, s.putLocked(d, now).Clone())
	}

	s.logger.Debug("registered base node",
		zap.String("node_id", base.ID),
		zap.Int("derivatives", len(out.Derivatives)),
	)
	return out, nil
}

// GetExpansion returns a base node with its contexts grouped by family and
// its materialized derivatives.
func (s *Store) GetExpansion(id string) (Expansion, error) {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return Expansion{}, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if !n.IsBase() {
		return Expansion{}, fmt.Errorf("%w: %s is at level %d", ErrInvalidExpansionTarget, id, n.FractalLevel)
	}

	exp := Expansion{
		Node:     n.Clone(),
		Contexts: make(map[Family][]Context, len(AllFamilies())),
		Total:    len(n.Contexts),
	}
	for _, c := range n.Contexts {
		families := c.Families()
		if c.IsHybrid() {
			families = append(families, FamilyHybrid)
		}
		for _, f := range families {
			exp.Contexts[f] = append(exp.Contexts[f], c)
		}
	}
	for _, c := range Taxonomy() {
		if d, ok := s.nodes[DerivativeID(id, c)]; ok {
			exp.Derivatives = append(exp.Derivatives, d.Clone())
		}
	}
	return exp, nil
}

// Subnodes returns the materialized derivatives of a base node in taxonomy
// order.
func (s *Store) Subnodes(id string) ([]Node, error) {
	exp, err := s.GetExpansion(id)
	if err != nil {
		return nil, err
	}
	if exp.Derivatives == nil {
		return []Node{}, nil
	}
	return exp.Derivatives, nil
}

func sortNodes(ns []Node) {
	sort.Slice(ns, func(i, j int) bool { return ns[i].ID < ns[j].ID })
}
