// Package federation keeps the static list of peer nodes this node knows about.
package federation

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StatusActive  = "active"
	StatusOffline = "offline"
)

// DefaultTTL is how long a peer stays active after its last inbox activity.
const DefaultTTL = 10 * time.Minute

// Peer represents a known federation peer
type Peer struct {
	ID           string    `json:"id" yaml:"id"`
	URL          string    `json:"url" yaml:"url"`
	Capabilities []string  `json:"capabilities" yaml:"capabilities"`
	Status       string    `json:"status" yaml:"status,omitempty"`
	LastSeen     time.Time `json:"lastSeen,omitempty" yaml:"-"`
}

// File is the on-disk shape of a peers file.
type File struct {
	Peers []Peer `yaml:"peers"`
}

// DefaultPeers returns the three reference implementations of the network.
func DefaultPeers() []Peer {
	return []Peer{
		{
			ID:           "nodejs@localhost:8787",
			URL:          "http://localhost:8787",
			Capabilities: []string{"phase4", "federation", "storage"},
			Status:       StatusActive,
		},
		{
			ID:           "python@localhost:8788",
			URL:          "http://localhost:8788",
			Capabilities: []string{"phase4", "phase5", "federation", "fractal_expansion"},
			Status:       StatusActive,
		},
		{
			ID:           "rust@localhost:8789",
			URL:          "http://localhost:8789",
			Capabilities: []string{"phase4", "phase5", "phase6", "federation", "fractal_expansion", "multi_implementation"},
			Status:       StatusActive,
		},
	}
}

// LoadFile reads a YAML peers file.
func LoadFile(path string) ([]Peer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read peers file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse peers file %s: %w", path, err)
	}
	seen := make(map[string]bool, len(f.Peers))
	for i, p := range f.Peers {
		if p.ID == "" || p.URL == "" {
			return nil, fmt.Errorf("peer %d in %s: id and url are required", i, path)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("peer %q listed twice in %s", p.ID, path)
		}
		seen[p.ID] = true
	}
	return f.Peers, nil
}

// Directory maintains the set of peers. Status is computed on read from
// the last time an activity arrived from the peer.
type Directory struct {
	mu    sync.RWMutex
	peers map[string]*Peer
	now   func() time.Time
}

// NewDirectory creates a directory holding the given peers.
func NewDirectory(peers []Peer) *Directory {
	d := &Directory{now: time.Now}
	d.Replace(peers)
	return d
}

// Replace swaps the peer list, keeping LastSeen for peers that survive.
func (d *Directory) Replace(peers []Peer) {
	next := make(map[string]*Peer, len(peers))
	for _, p := range peers {
		p := p
		p.Capabilities = append([]string(nil), p.Capabilities...)
		if p.Status == "" {
			p.Status = StatusActive
		}
		next[p.ID] = &p
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range next {
		if old, ok := d.peers[id]; ok {
			p.LastSeen = old.LastSeen
		}
	}
	d.peers = next
}

// Touch records an activity from actor. The actor matches a peer when it
// equals the peer id or the peer url, or is a path under the peer url.
// Reports whether a peer matched.
func (d *Directory) Touch(actor string) bool {
	if actor == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	matched := false
	for _, p := range d.peers {
		if actor == p.ID || underURL(actor, p.URL) {
			p.LastSeen = d.now()
			matched = true
		}
	}
	return matched
}

func underURL(actor, peerURL string) bool {
	base := strings.TrimRight(peerURL, "/")
	if base == "" {
		return false
	}
	return actor == base || strings.HasPrefix(actor, base+"/")
}

// Peers returns all known peers sorted by id. A peer that has been seen
// but not within ttl is reported offline.
func (d *Directory) Peers(ttl time.Duration) []Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	now := d.now()
	list := make([]Peer, 0, len(d.peers))
	for _, p := range d.peers {
		status := p.Status
		if !p.LastSeen.IsZero() {
			status = StatusActive
			if now.Sub(p.LastSeen) > ttl {
				status = StatusOffline
			}
		}
		list = append(list, Peer{
			ID:           p.ID,
			URL:          p.URL,
			Capabilities: append([]string(nil), p.Capabilities...),
			Status:       status,
			LastSeen:     p.LastSeen,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Len returns the number of known peers.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
