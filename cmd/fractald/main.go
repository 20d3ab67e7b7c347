package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rmax-ai/fractald/pkg/api"
	"github.com/rmax-ai/fractald/pkg/federation"
	"github.com/rmax-ai/fractald/pkg/graph"
	"github.com/rmax-ai/fractald/pkg/metrics"
	"github.com/rmax-ai/fractald/pkg/snapshot"
	"github.com/rmax-ai/fractald/pkg/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "fractald: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fractald: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("system_started", zap.String("addr", cfg.Addr), zap.String("persist", cfg.Persist))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}

// run wires the daemon and blocks until ctx is cancelled or a component
// fails.
func run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	st := graph.NewStore(graph.WithLogger(logger.Named("graph")))

	sink, lease, closeSink, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	restored := false
	if sink != nil {
		restored, err = snapshot.RestoreLatest(ctx, sink, st)
		if err != nil {
			return err
		}
	}
	switch {
	case restored:
		stats := st.Stats()
		logger.Info("snapshot_restored",
			zap.Int("nodes", stats.TotalNodes+stats.TotalSubnodes),
			zap.Int("contributions", stats.TotalContributions),
		)
	case cfg.NoSeed:
		logger.Info("starting_empty")
	default:
		if err := st.Seed(); err != nil {
			return fmt.Errorf("failed to seed store: %w", err)
		}
	}

	peers := federation.DefaultPeers()
	if cfg.PeersPath != "" {
		peers, err = federation.LoadFile(cfg.PeersPath)
		if err != nil {
			return err
		}
	}
	dir := federation.NewDirectory(peers)
	logger.Info("peers_loaded", zap.Int("count", dir.Len()))

	if err := prometheus.Register(metrics.NewStatsCollector(st)); err != nil {
		logger.Warn("stats_collector_not_registered", zap.Error(err))
	}

	srv := api.NewServer(st, dir, cfg.Addr, logger.Named("api"))
	srv.SetBaseURL(cfg.BaseURL)
	srv.SetPeerTTL(cfg.PeerTTL)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if sink != nil {
		worker := snapshot.NewWorker(st, sink, cfg.SnapshotInterval, logger.Named("snapshot"))
		if lease != nil {
			worker.WithLease(lease, store.SnapshotWriterLease, cfg.HolderID)
		}
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		watchPeers(gctx, cfg.PeersPath, dir, logger)
		return nil
	})

	return g.Wait()
}

// watchPeers reloads the peers file on SIGHUP until ctx is done.
func watchPeers(ctx context.Context, path string, dir *federation.Directory, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("sighup_received")
			if err := reloadPeers(path, dir); err != nil {
				logger.Error("peers_reload_failed", zap.Error(err))
				continue
			}
			logger.Info("peers_reloaded", zap.Int("count", dir.Len()))
		}
	}
}

// reloadPeers replaces the directory contents from path. With no path the
// directory is reset to the defaults.
func reloadPeers(path string, dir *federation.Directory) error {
	if path == "" {
		dir.Replace(federation.DefaultPeers())
		return nil
	}
	peers, err := federation.LoadFile(path)
	if err != nil {
		return err
	}
	dir.Replace(peers)
	return nil
}
