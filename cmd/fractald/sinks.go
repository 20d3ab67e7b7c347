package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rmax-ai/fractald/pkg/blob"
	"github.com/rmax-ai/fractald/pkg/snapshot"
	"github.com/rmax-ai/fractald/pkg/store"
	redisstore "github.com/rmax-ai/fractald/pkg/store/redis"
)

// openSink builds the snapshot sink selected by cfg.Persist. The lease is
// nil for sinks that cannot be shared between daemons. The returned close
// function is always safe to call.
func openSink(ctx context.Context, cfg Config, logger *zap.Logger) (snapshot.Sink, snapshot.Lease, func(), error) {
	noop := func() {}

	switch cfg.Persist {
	case "off":
		return nil, nil, noop, nil

	case "sqlite":
		st, err := store.NewStore(cfg.DBPath)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("store_initialized", zap.String("persist", "sqlite"), zap.String("path", cfg.DBPath))
		return st, st, func() {
			if err := st.Close(); err != nil {
				logger.Error("failed_to_close_store", zap.Error(err))
			}
		}, nil

	case "fs":
		blobs := blob.NewLocalBlobStore(cfg.StorageDir)
		logger.Info("store_initialized", zap.String("persist", "fs"), zap.String("path", blobs.Root()))
		return snapshot.NewFileSink(blobs), nil, noop, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, noop, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("store_initialized", zap.String("persist", "redis"), zap.String("addr", cfg.RedisAddr))
		return redisstore.NewRedisSnapshotStore(client, logger.Named("redis")), redisstore.NewRedisLeaseStore(client), func() {
			if err := client.Close(); err != nil {
				logger.Error("failed_to_close_redis", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, noop, fmt.Errorf("unsupported persist mode: %s", cfg.Persist)
	}
}
