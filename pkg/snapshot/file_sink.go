package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/fractald/pkg/blob"
	"github.com/rmax-ai/fractald/pkg/graph"
)

const (
	manifestKey       = "manifest.json"
	generationsPrefix = "generations"
	nodesPrefix       = "nodes"
	contribsPrefix    = "contributions"
	contextsPrefix    = "contexts"
	manifestVersion   = 2
	flatVersion       = 1
)

// manifest is written last and names the generation holding the documents.
// A generation without a manifest pointing at it is incomplete and is
// ignored on load. Version 1 manifests predate generations and read their
// documents from the store root.
type manifest struct {
	Version       int       `json:"version"`
	Generation    string    `json:"generation,omitempty"`
	TakenAt       time.Time `json:"takenAt"`
	Nodes         []string  `json:"nodes"`
	Contributions []string  `json:"contributions"`
}

// FileSink writes snapshots as one JSON document per node and per
// contribution, plus a posting list per context, under a BlobStore. Each
// save goes to a fresh generation directory and becomes visible only when
// the manifest is switched over to it.
type FileSink struct {
	blobs blob.BlobStore
}

// NewFileSink creates a FileSink over blobs.
func NewFileSink(blobs blob.BlobStore) *FileSink {
	return &FileSink{blobs: blobs}
}

func newGeneration(takenAt time.Time) string {
	return fmt.Sprintf("%020d-%s", takenAt.UnixNano(), uuid.NewString()[:8])
}

func generationRoot(gen string) string {
	if gen == "" {
		return ""
	}
	return path.Join(generationsPrefix, gen)
}

func nodeKey(gen, id string) string {
	return path.Join(generationRoot(gen), nodesPrefix, blob.EscapeKey(id)+".json")
}

func contributionKey(gen, id string) string {
	return path.Join(generationRoot(gen), contribsPrefix, blob.EscapeKey(id)+".json")
}

func contextKey(gen string, c graph.Context) string {
	name := blob.EscapeKey(strings.ReplaceAll(c.String(), "+", "_")) + ".json"
	return path.Join(generationRoot(gen), contextsPrefix, name)
}

// SaveSnapshot writes every document into a new generation, swaps in the
// manifest naming it and then removes older generations. A failure before
// the swap leaves the previous snapshot loadable.
func (s *FileSink) SaveSnapshot(ctx context.Context, snap graph.Snapshot) error {
	gen := newGeneration(snap.TakenAt)
	m := manifest{Version: manifestVersion, Generation: gen, TakenAt: snap.TakenAt}
	postings := make(map[graph.Context][]string)

	for _, n := range snap.Nodes {
		if err := s.putJSON(ctx, nodeKey(gen, n.ID), n); err != nil {
			return err
		}
		m.Nodes = append(m.Nodes, n.ID)
		for _, c := range n.Contexts {
			postings[c] = append(postings[c], n.ID)
		}
	}
	for _, c := range snap.Contributions {
		if err := s.putJSON(ctx, contributionKey(gen, c.ID), c); err != nil {
			return err
		}
		m.Contributions = append(m.Contributions, c.ID)
	}
	for c, ids := range postings {
		if err := s.putJSON(ctx, contextKey(gen, c), map[string]any{"context": c, "nodes": ids}); err != nil {
			return err
		}
	}

	if err := s.putJSON(ctx, manifestKey, m); err != nil {
		return err
	}
	if err := s.prune(ctx, gen); err != nil {
		return fmt.Errorf("snapshot %s saved, pruning older generations failed: %w", gen, err)
	}
	return nil
}

// prune deletes every document outside generation keep, including the flat
// layout written by version 1 manifests.
func (s *FileSink) prune(ctx context.Context, keep string) error {
	live := generationRoot(keep) + "/"
	for _, prefix := range []string{generationsPrefix, nodesPrefix, contribsPrefix, contextsPrefix} {
		keys, err := s.blobs.List(ctx, prefix)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if strings.HasPrefix(key, live) {
				continue
			}
			if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}

// LoadSnapshot reads the documents named by the manifest, preserving the
// ledger order it records.
func (s *FileSink) LoadSnapshot(ctx context.Context) (graph.Snapshot, bool, error) {
	var m manifest
	if err := s.getJSON(ctx, manifestKey, &m); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return graph.Snapshot{}, false, nil
		}
		return graph.Snapshot{}, false, err
	}
	switch m.Version {
	case flatVersion:
		m.Generation = ""
	case manifestVersion:
		if m.Generation == "" {
			return graph.Snapshot{}, false, errors.New("snapshot manifest names no generation")
		}
	default:
		return graph.Snapshot{}, false, fmt.Errorf("unsupported snapshot manifest version %d", m.Version)
	}

	snap := graph.Snapshot{
		TakenAt:       m.TakenAt,
		Nodes:         make([]graph.Node, 0, len(m.Nodes)),
		Contributions: make([]graph.Contribution, 0, len(m.Contributions)),
	}
	for _, id := range m.Nodes {
		var n graph.Node
		if err := s.getJSON(ctx, nodeKey(m.Generation, id), &n); err != nil {
			return graph.Snapshot{}, false, err
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	for _, id := range m.Contributions {
		var c graph.Contribution
		if err := s.getJSON(ctx, contributionKey(m.Generation, id), &c); err != nil {
			return graph.Snapshot{}, false, err
		}
		snap.Contributions = append(snap.Contributions, c)
	}
	return snap, true, nil
}

func (s *FileSink) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.blobs.Put(ctx, key, bytes.NewReader(data))
}

func (s *FileSink) getJSON(ctx context.Context, key string, v any) error {
	r, err := s.blobs.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}
