package simulation

import (
	"time"
)

// SimulationResult captures the final state of the simulation for reporting
type SimulationResult struct {
	ScenarioName       string                 `json:"scenario_name"`
	Duration           time.Duration          `json:"duration"`
	TotalRequests      uint64                 `json:"total_requests"`
	TotalContributions uint64                 `json:"total_contributions"`
	TotalReads         uint64                 `json:"total_reads"`
	TotalRejected      uint64                 `json:"total_rejected"`
	TotalErrors        uint64                 `json:"total_errors"`
	AgentStats         map[string]*AgentStats `json:"agent_stats"`
	Invariants         []InvariantResult      `json:"invariants"`
	Success            bool                   `json:"success"`
}

type AgentStats struct {
	Requests      uint64 `json:"requests"`
	Contributions uint64 `json:"contributions"`
	Reads         uint64 `json:"reads"`
	Rejected      uint64 `json:"rejected"`
	Errors        uint64 `json:"errors"`
}

type InvariantResult struct {
	Metric   string `json:"metric"`
	Scope    string `json:"scope"`
	Expected string `json:"expected"` // e.g. "> 0.95"
	Actual   string `json:"actual"`   // e.g. "0.98"
	Passed   bool   `json:"passed"`
}

type Scenario struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Seed        int64         `json:"seed" yaml:"seed"` // Deterministic seed
	Agents      []AgentConfig `json:"agents" yaml:"agents"`
	Invariants  []Invariant   `json:"invariants,omitempty" yaml:"invariants,omitempty"`
	// VerifyLedger compares the server's contribution count before and after
	// the run with the number of accepted contributions. Only meaningful when
	// nothing else writes to the node during the run.
	VerifyLedger bool `json:"verify_ledger" yaml:"verify_ledger"`
}

type Invariant struct {
	Metric    string  `json:"metric" yaml:"metric"`       // "accept_rate", "reject_rate", "error_rate"
	Condition string  `json:"condition" yaml:"condition"` // e.g., ">", "<", ">=", "<="
	Value     float64 `json:"value" yaml:"value"`
	Scope     string  `json:"scope" yaml:"scope"` // "global" or specific agent name
}

type AgentConfig struct {
	Name     string        `json:"name" yaml:"name"`
	Count    int           `json:"count" yaml:"count"`
	UserID   string        `json:"user_id" yaml:"user_id"` // default: agent instance id
	Nodes    []string      `json:"nodes" yaml:"nodes"`     // default: the seed nodes
	Behavior BehaviorType  `json:"behavior" yaml:"behavior"`
	Rate     int           `json:"rate" yaml:"rate"` // Requests per second
	Burst    int           `json:"burst" yaml:"burst"`
	Jitter   time.Duration `json:"jitter" yaml:"jitter"`
	// ReadRatio is the share of actions that read a node instead of
	// contributing, in [0,1].
	ReadRatio float64 `json:"read_ratio" yaml:"read_ratio"`
	// ContextRatio is the share of contributions tagged with a random
	// taxonomy context.
	ContextRatio float64 `json:"context_ratio" yaml:"context_ratio"`
}

type BehaviorType string

const (
	BehaviorPeriodic BehaviorType = "periodic"
	BehaviorGreedy   BehaviorType = "greedy"
	BehaviorPoisson  BehaviorType = "poisson"
	BehaviorBursty   BehaviorType = "bursty"
)
