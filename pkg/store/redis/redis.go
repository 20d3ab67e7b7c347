package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rmax-ai/fractald/pkg/graph"
)

const (
	nodesSet         = "fractal:nodes"
	contributionList = "fractal:contributions"
	metaKey          = "fractal:snapshot:meta"
)

type snapshotMeta struct {
	TakenAt       time.Time `json:"takenAt"`
	Nodes         int       `json:"nodes"`
	Contributions int       `json:"contributions"`
}

// RedisSnapshotStore keeps fractal snapshots in Redis: one string key per
// node, tracked in a set, and the ledger as a list in append order.
type RedisSnapshotStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSnapshotStore creates a snapshot store over client.
func NewRedisSnapshotStore(client *redis.Client, logger *zap.Logger) *RedisSnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSnapshotStore{client: client, logger: logger}
}

func (s *RedisSnapshotStore) makeKey(nodeID string) string {
	return fmt.Sprintf("fractal:node:%s", nodeID)
}

// SaveSnapshot replaces the stored snapshot inside a MULTI/EXEC block.
func (s *RedisSnapshotStore) SaveSnapshot(ctx context.Context, snap graph.Snapshot) error {
	oldKeys, err := s.client.SMembers(ctx, nodesSet).Result()
	if err != nil {
		return fmt.Errorf("failed to SMEMBERS %s: %w", nodesSet, err)
	}

	nodeValues := make([]any, 0, len(snap.Nodes)*2)
	nodeKeys := make([]any, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal node %s: %w", n.ID, err)
		}
		key := s.makeKey(n.ID)
		nodeValues = append(nodeValues, key, data)
		nodeKeys = append(nodeKeys, key)
	}
	contribValues := make([]any, 0, len(snap.Contributions))
	for _, c := range snap.Contributions {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal contribution %s: %w", c.ID, err)
		}
		contribValues = append(contribValues, data)
	}
	meta, err := json.Marshal(snapshotMeta{TakenAt: snap.TakenAt, Nodes: len(snap.Nodes), Contributions: len(snap.Contributions)})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(oldKeys) > 0 {
			pipe.Del(ctx, oldKeys...)
		}
		pipe.Del(ctx, nodesSet, contributionList)
		if len(nodeValues) > 0 {
			pipe.MSet(ctx, nodeValues...)
			pipe.SAdd(ctx, nodesSet, nodeKeys...)
		}
		if len(contribValues) > 0 {
			pipe.RPush(ctx, contributionList, contribValues...)
		}
		pipe.Set(ctx, metaKey, meta, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored snapshot back. Node keys that vanished
// between SMEMBERS and MGET are skipped.
func (s *RedisSnapshotStore) LoadSnapshot(ctx context.Context) (graph.Snapshot, bool, error) {
	raw, err := s.client.Get(ctx, metaKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return graph.Snapshot{}, false, nil
		}
		return graph.Snapshot{}, false, fmt.Errorf("failed to GET %s: %w", metaKey, err)
	}
	var meta snapshotMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return graph.Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot metadata: %w", err)
	}

	snap := graph.Snapshot{TakenAt: meta.TakenAt}

	keys, err := s.client.SMembers(ctx, nodesSet).Result()
	if err != nil {
		return graph.Snapshot{}, false, fmt.Errorf("failed to SMEMBERS %s: %w", nodesSet, err)
	}
	if len(keys) > 0 {
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return graph.Snapshot{}, false, fmt.Errorf("failed to MGET nodes: %w", err)
		}
		for i, val := range values {
			str, ok := val.(string)
			if !ok {
				s.logger.Warn("node key missing from snapshot", zap.String("key", keys[i]))
				continue
			}
			var n graph.Node
			if err := json.Unmarshal([]byte(str), &n); err != nil {
				return graph.Snapshot{}, false, fmt.Errorf("failed to unmarshal node %s: %w", keys[i], err)
			}
			snap.Nodes = append(snap.Nodes, n)
		}
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })

	entries, err := s.client.LRange(ctx, contributionList, 0, -1).Result()
	if err != nil {
		return graph.Snapshot{}, false, fmt.Errorf("failed to LRANGE %s: %w", contributionList, err)
	}
	for _, e := range entries {
		var c graph.Contribution
		if err := json.Unmarshal([]byte(e), &c); err != nil {
			return graph.Snapshot{}, false, fmt.Errorf("failed to unmarshal contribution: %w", err)
		}
		snap.Contributions = append(snap.Contributions, c)
	}

	return snap, true, nil
}

// Clear removes every key the snapshot store owns.
func (s *RedisSnapshotStore) Clear(ctx context.Context) error {
	keys, err := s.client.SMembers(ctx, nodesSet).Result()
	if err != nil {
		return fmt.Errorf("failed to SMEMBERS %s during clear: %w", nodesSet, err)
	}
	keys = append(keys, nodesSet, contributionList, metaKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to DEL snapshot keys: %w", err)
	}
	return nil
}
