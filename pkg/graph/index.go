package graph

import "sort"

// indexLocked records that id carries c. Must be called with indexMu held.
func (s *Store) indexLocked(c Context, id string) {
	ids, ok := s.index[c]
	if !ok {
		ids = make(map[string]struct{})
		s.index[c] = ids
	}
	ids[id] = struct{}{}
}

// unindexLocked drops id from the posting set of c, removing the set once it
// is empty. Must be called with indexMu held.
func (s *Store) unindexLocked(c Context, id string) {
	ids, ok := s.index[c]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(s.index, c)
	}
}

// NodesForContext returns the sorted ids of every node tagged with c.
func (s *Store) NodesForContext(c Context) []string {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	ids := s.index[c]
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GroupAllNodesByContextFamily buckets nodes by the families of their
// contexts. A hybrid context places its node in the bucket of every family
// it touches and in the hybrid bucket. Every bucket is present in the result
// and lists each node at most once, ordered by id.
func (s *Store) GroupAllNodesByContextFamily() map[Family][]Node {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	buckets := make(map[Family]map[string]struct{}, len(AllFamilies()))
	for _, f := range AllFamilies() {
		buckets[f] = make(map[string]struct{})
	}
	for c, ids := range s.index {
		families := c.Families()
		if c.IsHybrid() {
			families = append(families, FamilyHybrid)
		}
		for _, f := range families {
			for id := range ids {
				buckets[f][id] = struct{}{}
			}
		}
	}

	out := make(map[Family][]Node, len(buckets))
	for f, ids := range buckets {
		nodes := make([]Node, 0, len(ids))
		for id := range ids {
			if n, ok := s.nodes[id]; ok {
				nodes = append(nodes, n.Clone())
			}
		}
		sortNodes(nodes)
		out[f] = nodes
	}
	return out
}

// NodesByFamily returns the nodes carrying at least one context of the named
// base family. Unknown names, including "hybrid", are rejected.
func (s *Store) NodesByFamily(name string) ([]Node, error) {
	family, err := ParseFamily(name)
	if err != nil {
		return nil, err
	}
	return s.GroupAllNodesByContextFamily()[family], nil
}
