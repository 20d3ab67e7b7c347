package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/fractald/pkg/client"
	"github.com/rmax-ai/fractald/pkg/graph"
)

const writeTimeout = 5 * time.Second

// RunScenario drives the node behind c with the scenario's agents until the
// scenario duration elapses or ctx is cancelled.
func RunScenario(ctx context.Context, s Scenario, c *client.Client, logger *zap.Logger) SimulationResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Seed == 0 {
		s.Seed = time.Now().UnixNano()
	}

	logger.Info("running scenario", zap.String("name", s.Name), zap.Int64("seed", s.Seed))

	res := SimulationResult{
		ScenarioName: s.Name,
		Duration:     s.Duration,
		AgentStats:   make(map[string]*AgentStats),
	}

	var before graph.StorageStats
	if s.VerifyLedger {
		var err error
		if before, err = c.Stats(ctx); err != nil {
			logger.Error("failed to read stats before run", zap.Error(err))
			res.Invariants = append(res.Invariants, InvariantResult{
				Metric: "ledger_consistency", Scope: "global", Expected: "reachable", Actual: err.Error(),
			})
			return res
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.Duration)
	defer cancel()

	for _, agentCfg := range s.Agents {
		res.AgentStats[agentCfg.Name] = &AgentStats{}
	}

	var wg sync.WaitGroup
	for agentIdx, agentCfg := range s.Agents {
		stats := res.AgentStats[agentCfg.Name] // Group stats by Agent Config Name
		for i := 0; i < agentCfg.Count; i++ {
			wg.Add(1)
			agentID := fmt.Sprintf("%s-%d", agentCfg.Name, i)
			agentSeed := s.Seed + int64(agentIdx*1000) + int64(i)

			go func(cfg AgentConfig, aID string, seed int64, st *AgentStats) {
				defer wg.Done()
				runAgent(runCtx, c, aID, cfg, seed, &res, st)
			}(agentCfg, agentID, agentSeed, stats)
		}
	}
	wg.Wait()

	evaluateInvariants(&res, s.Invariants)
	if s.VerifyLedger {
		res.Invariants = append(res.Invariants, verifyLedger(ctx, c, before, atomic.LoadUint64(&res.TotalContributions)))
	}

	res.Success = true
	for _, inv := range res.Invariants {
		if !inv.Passed {
			res.Success = false
			break
		}
	}

	logger.Info("scenario finished",
		zap.Uint64("requests", res.TotalRequests),
		zap.Uint64("contributions", res.TotalContributions),
		zap.Uint64("errors", res.TotalErrors),
		zap.Bool("success", res.Success),
	)
	return res
}

func runAgent(ctx context.Context, c *client.Client, agentID string, cfg AgentConfig, seed int64, global *SimulationResult, stats *AgentStats) {
	rng := rand.New(rand.NewSource(seed))

	nodes := cfg.Nodes
	if len(nodes) == 0 {
		for _, n := range graph.SeedNodes() {
			nodes = append(nodes, n.ID)
		}
	}
	userID := cfg.UserID
	if userID == "" {
		userID = agentID
	}
	taxonomy := graph.Taxonomy()
	var seq int

	track := func(read bool, err error) {
		atomic.AddUint64(&global.TotalRequests, 1)
		atomic.AddUint64(&stats.Requests, 1)
		switch {
		case errors.Is(err, client.ErrBadRequest), errors.Is(err, client.ErrNotFound):
			atomic.AddUint64(&global.TotalRejected, 1)
			atomic.AddUint64(&stats.Rejected, 1)
		case err != nil:
			atomic.AddUint64(&global.TotalErrors, 1)
			atomic.AddUint64(&stats.Errors, 1)
		case read:
			atomic.AddUint64(&global.TotalReads, 1)
			atomic.AddUint64(&stats.Reads, 1)
		default:
			atomic.AddUint64(&global.TotalContributions, 1)
			atomic.AddUint64(&stats.Contributions, 1)
		}
	}

	action := func() {
		nodeID := nodes[rng.Intn(len(nodes))]

		if rng.Float64() < cfg.ReadRatio {
			_, err := c.GetNode(ctx, nodeID)
			if ctx.Err() != nil {
				return
			}
			track(true, err)
			return
		}

		seq++
		in := client.Contribution{
			Actor:   userID,
			NodeID:  nodeID,
			Content: fmt.Sprintf("%s observation %d on %s", agentID, seq, nodeID),
		}
		resonance := math.Round(rng.Float64()*100) / 100
		in.Resonance = &resonance
		if len(taxonomy) > 0 && rng.Float64() < cfg.ContextRatio {
			ctxValue := taxonomy[rng.Intn(len(taxonomy))]
			in.Context = &ctxValue
		}

		// writes run to completion so every accepted contribution is counted
		writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		_, err := c.Contribute(writeCtx, in)
		cancel()
		track(false, err)
	}

	rate := cfg.Rate
	if rate <= 0 {
		rate = 1
	}

	switch cfg.Behavior {
	case BehaviorGreedy:
		for ctx.Err() == nil {
			action()
		}
	case BehaviorPoisson:
		lambda := float64(rate)
		for {
			interval := -math.Log(1-rng.Float64()) / lambda
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(interval * float64(time.Second))):
				action()
			}
		}
	case BehaviorBursty:
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for k := 0; k < cfg.Burst && ctx.Err() == nil; k++ {
					action()
				}
			}
		}
	case BehaviorPeriodic:
		fallthrough
	default:
		interval := time.Second / time.Duration(rate)
		if interval == 0 {
			interval = time.Millisecond * 10
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if cfg.Jitter > 0 {
					time.Sleep(time.Duration(rng.Int63n(int64(cfg.Jitter))))
				}
				action()
			}
		}
	}
}

func verifyLedger(ctx context.Context, c *client.Client, before graph.StorageStats, accepted uint64) InvariantResult {
	inv := InvariantResult{
		Metric:   "ledger_consistency",
		Scope:    "global",
		Expected: fmt.Sprintf("== %d", uint64(before.TotalContributions)+accepted),
	}
	after, err := c.Stats(ctx)
	if err != nil {
		inv.Actual = err.Error()
		return inv
	}
	inv.Actual = fmt.Sprintf("%d", after.TotalContributions)
	inv.Passed = uint64(after.TotalContributions) == uint64(before.TotalContributions)+accepted
	return inv
}

func evaluateInvariants(res *SimulationResult, invariants []Invariant) {
	for _, inv := range invariants {
		var actual float64
		var passed bool

		var stats AgentStats
		if inv.Scope == "global" || inv.Scope == "" {
			stats = AgentStats{
				Requests:      atomic.LoadUint64(&res.TotalRequests),
				Contributions: atomic.LoadUint64(&res.TotalContributions),
				Reads:         atomic.LoadUint64(&res.TotalReads),
				Rejected:      atomic.LoadUint64(&res.TotalRejected),
				Errors:        atomic.LoadUint64(&res.TotalErrors),
			}
		} else {
			s, ok := res.AgentStats[inv.Scope]
			if !ok {
				res.Invariants = append(res.Invariants, InvariantResult{
					Metric: inv.Metric, Scope: inv.Scope, Expected: fmt.Sprintf("%s %.2f", inv.Condition, inv.Value), Actual: "N/A", Passed: false,
				})
				continue
			}
			stats = AgentStats{
				Requests:      atomic.LoadUint64(&s.Requests),
				Contributions: atomic.LoadUint64(&s.Contributions),
				Reads:         atomic.LoadUint64(&s.Reads),
				Rejected:      atomic.LoadUint64(&s.Rejected),
				Errors:        atomic.LoadUint64(&s.Errors),
			}
		}

		if stats.Requests > 0 {
			switch inv.Metric {
			case "accept_rate":
				actual = float64(stats.Contributions+stats.Reads) / float64(stats.Requests)
			case "reject_rate":
				actual = float64(stats.Rejected) / float64(stats.Requests)
			case "error_rate":
				actual = float64(stats.Errors) / float64(stats.Requests)
			}
		}

		switch inv.Condition {
		case ">":
			passed = actual > inv.Value
		case ">=":
			passed = actual >= inv.Value
		case "<":
			passed = actual < inv.Value
		case "<=":
			passed = actual <= inv.Value
		case "==":
			passed = math.Abs(actual-inv.Value) < 0.0001
		}

		res.Invariants = append(res.Invariants, InvariantResult{
			Metric:   inv.Metric,
			Scope:    inv.Scope,
			Expected: fmt.Sprintf("%s %.2f", inv.Condition, inv.Value),
			Actual:   fmt.Sprintf("%.4f", actual),
			Passed:   passed,
		})
	}
}
