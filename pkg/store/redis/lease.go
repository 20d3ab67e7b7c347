package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rmax-ai/fractald/pkg/store"
)

// RedisLeaseStore implements store.LeaseStore with SET NX and expiring keys.
type RedisLeaseStore struct {
	client *redis.Client
}

// NewRedisLeaseStore creates a lease store over client.
func NewRedisLeaseStore(client *redis.Client) *RedisLeaseStore {
	return &RedisLeaseStore{client: client}
}

func (s *RedisLeaseStore) makeKey(name string) string {
	return fmt.Sprintf("fractal:lease:%s", name)
}

// acquireScript takes the lease when it is free and extends it when the
// caller already holds it, in one round trip.
const acquireScript = `
	if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
		return 1
	end
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		redis.call("PEXPIRE", KEYS[1], ARGV[2])
		return 1
	end
	return 0
`

// Acquire tries to take the lease, renewing it when holderID already holds it.
func (s *RedisLeaseStore) Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error) {
	res, err := s.client.Eval(ctx, acquireScript, []string{s.makeKey(name)}, holderID, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return res == 1, nil
}

// Renew extends the lease if holderID still holds it.
func (s *RedisLeaseStore) Renew(ctx context.Context, name, holderID string, ttl time.Duration) error {
	key := s.makeKey(name)

	// Lua script to check if holder matches before extending expiry
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`

	// PEXPIRE takes milliseconds
	ttlMs := int64(ttl / time.Millisecond)

	res, err := s.client.Eval(ctx, script, []string{key}, holderID, ttlMs).Result()
	if err != nil {
		return fmt.Errorf("failed to execute renew script: %w", err)
	}

	success, ok := res.(int64)
	if !ok {
		return fmt.Errorf("unexpected return type from renew script")
	}

	if success == 1 {
		return nil
	}

	return store.ErrLeaseLost
}

// Release deletes the lease if holderID holds it.
func (s *RedisLeaseStore) Release(ctx context.Context, name, holderID string) error {
	key := s.makeKey(name)

	// Lua script to check if holder matches before deleting
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`

	if err := s.client.Eval(ctx, script, []string{key}, holderID).Err(); err != nil {
		return fmt.Errorf("failed to execute release script: %w", err)
	}

	// Not holding the lease is not an error: afterwards we do not hold it.
	return nil
}

// Get returns the current holder and an expiry derived from the key TTL.
func (s *RedisLeaseStore) Get(ctx context.Context, name string) (*store.Lease, error) {
	key := s.makeKey(name)

	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No lease held
		}
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease ttl: %w", err)
	}

	return &store.Lease{
		Name:      name,
		HolderID:  val,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}
