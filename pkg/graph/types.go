package graph

import (
	"fmt"
	"math"
	"time"
)

// FlowState is the dynamic character attributed to a node.
type FlowState string

const (
	FlowSolid       FlowState = "solid"
	FlowLiquid      FlowState = "liquid"
	FlowGas         FlowState = "gas"
	FlowPlasma      FlowState = "plasma"
	FlowColloidal   FlowState = "colloidal"
	FlowCrystalline FlowState = "crystalline"
	FlowLiving      FlowState = "living"
	FlowWave        FlowState = "wave"
)

// Valid reports whether s is one of the known flow states.
func (s FlowState) Valid() bool {
	switch s {
	case FlowSolid, FlowLiquid, FlowGas, FlowPlasma, FlowColloidal, FlowCrystalline, FlowLiving, FlowWave:
		return true
	}
	return false
}

// Levels of the fractal hierarchy.
const (
	LevelBase       = 1
	LevelDerivative = 2
)

// Node is a vertex of the fractal graph. Base nodes (level 1) carry their
// interpretive contexts; derivative nodes (level 2) point back to their base
// through ParentID and encode their context in the id suffix.
type Node struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FlowState    FlowState `json:"flowState"`
	Archetype    []string  `json:"archetype"`
	Resonance    float64   `json:"resonance"`
	FractalLevel int       `json:"fractalLevel"`
	Contexts     []Context `json:"contexts"`
	ParentID     string    `json:"parentId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsBase reports whether n is a level 1 node.
func (n Node) IsBase() bool {
	return n.FractalLevel == LevelBase
}

// HasContext reports whether c is tagged on n.
func (n Node) HasContext(c Context) bool {
	for _, have := range n.Contexts {
		if have == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	if n.Archetype != nil {
		out.Archetype = append([]string(nil), n.Archetype...)
	}
	if n.Contexts != nil {
		out.Contexts = append([]Context(nil), n.Contexts...)
	}
	return out
}

// Validate checks the structural invariants of a node.
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidNode)
	}
	if n.FractalLevel < LevelBase {
		return fmt.Errorf("%w: %s: fractal level must be at least 1", ErrInvalidNode, n.ID)
	}
	if (n.FractalLevel == LevelBase) != (n.ParentID == "") {
		return fmt.Errorf("%w: %s: only base nodes may omit a parent", ErrInvalidNode, n.ID)
	}
	if !n.FlowState.Valid() {
		return fmt.Errorf("%w: %s: unknown flow state %q", ErrInvalidNode, n.ID, n.FlowState)
	}
	if math.IsNaN(n.Resonance) || math.IsInf(n.Resonance, 0) {
		return fmt.Errorf("%w: %s: resonance must be a finite number", ErrInvalidNode, n.ID)
	}
	if !n.IsBase() && len(n.Contexts) > 0 {
		return fmt.Errorf("%w: %s: contexts attach to base nodes only", ErrInvalidNode, n.ID)
	}
	if err := n.checkLineage(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	for _, c := range n.Contexts {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidNode, n.ID, err)
		}
	}
	return nil
}

// checkLineage requires a derivative to sit at LevelDerivative under an id
// of the form <parent>:<family>:<value> naming one taxonomy member.
func (n Node) checkLineage() error {
	if n.IsBase() {
		return nil
	}
	if n.FractalLevel != LevelDerivative {
		return fmt.Errorf("%s: derivatives live at level %d, got %d", n.ID, LevelDerivative, n.FractalLevel)
	}
	c, ok := ContextFromDerivativeID(n.ID)
	if !ok || n.ID != DerivativeID(n.ParentID, c) {
		return fmt.Errorf("%s: id does not trace to a taxonomy context under parent %q", n.ID, n.ParentID)
	}
	return nil
}

// Contribution is a write-once entry in the contribution ledger.
type Contribution struct {
	ID        string    `json:"id"`
	NodeID    string    `json:"nodeId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Resonance float64   `json:"resonance"`
	Context   *Context  `json:"fractalContext,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hash returns the content address of the contribution.
func (c Contribution) Hash() string {
	return ContentHash(c.Content)
}

func (c Contribution) clone() Contribution {
	if c.Context != nil {
		ctx := *c.Context
		c.Context = &ctx
	}
	return c
}

// NewContribution is the caller-supplied part of a contribution. A nil
// Resonance defaults to DefaultResonance.
type NewContribution struct {
	NodeID    string
	UserID    string
	Content   string
	Resonance *float64
	Context   *Context
}

// Receipt acknowledges a stored contribution.
type Receipt struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"hash"`
	NodeID      string    `json:"nodeId"`
	Resonance   float64   `json:"resonance"`
	Timestamp   time.Time `json:"timestamp"`
}

// ExpansionMeta describes the shape of the context taxonomy.
type ExpansionMeta struct {
	TotalDimensions int      `json:"totalDimensions"`
	Contexts        []string `json:"contexts"`
}

// StorageStats is a derived summary of the store.
type StorageStats struct {
	Version            string        `json:"version"`
	FractalLevel       int           `json:"fractalLevel"`
	TotalNodes         int           `json:"totalNodes"`
	TotalSubnodes      int           `json:"totalSubnodes"`
	TotalContributions int           `json:"totalContributions"`
	TotalUsers         int           `json:"totalUsers"`
	TotalSize          int64         `json:"totalSize"`
	LevelBreakdown     map[int]int   `json:"levelBreakdown"`
	LastUpdated        time.Time     `json:"lastUpdated"`
	Expansion          ExpansionMeta `json:"expansion"`
}

func (s StorageStats) clone() StorageStats {
	out := s
	out.LevelBreakdown = make(map[int]int, len(s.LevelBreakdown))
	for k, v := range s.LevelBreakdown {
		out.LevelBreakdown[k] = v
	}
	out.Expansion.Contexts = append([]string(nil), s.Expansion.Contexts...)
	return out
}

// Expansion is the view of a base node together with its derivatives.
type Expansion struct {
	Node        Node                 `json:"node"`
	Contexts    map[Family][]Context `json:"contexts"`
	Derivatives []Node               `json:"derivatives"`
	Total       int                  `json:"totalExpansions"`
}
