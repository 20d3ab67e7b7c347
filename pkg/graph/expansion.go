package graph

import (
	"fmt"
	"strings"
)

// derivativeProfile is the fixed interpretation of a base node under one
// taxonomy context.
type derivativeProfile struct {
	multiplier float64
	flow       FlowState
	archetype  []string
}

var derivativeProfiles = map[Context]derivativeProfile{
	{FamilyScientific, ValueEmpirical}:    {0.8, FlowCrystalline, []string{"Measurement", "Observation", "Data"}},
	{FamilyScientific, ValueTheoretical}:  {0.9, FlowGas, []string{"Hypothesis", "Model", "Framework"}},
	{FamilyScientific, ValueExperimental}: {0.7, FlowLiquid, []string{"Testing", "Validation", "Discovery"}},
	{FamilySymbolic, ValueArchetypal}:     {0.9, FlowPlasma, []string{"Myth", "Symbol", "Collective"}},
	{FamilySymbolic, ValueCultural}:       {0.8, FlowColloidal, []string{"Tradition", "Society", "Heritage"}},
	{FamilySymbolic, ValuePersonal}:       {0.7, FlowWave, []string{"Individual", "Subjective", "Experience"}},
	{FamilyPhysicalState, ValuePhase}:     {0.8, FlowColloidal, []string{"Transition", "Boundary", "Change"}},
	{FamilyPhysicalState, ValueFlow}:      {0.9, FlowLiquid, []string{"Movement", "Direction", "Current"}},
	{FamilyPhysicalState, ValueCoherence}: {0.8, FlowCrystalline, []string{"Alignment", "Harmony", "Order"}},
}

// Multiplier returns the resonance factor applied when a base node is read
// through c. Unknown and hybrid contexts have a neutral factor of 1.
func Multiplier(c Context) float64 {
	if p, ok := derivativeProfiles[c]; ok {
		return p.multiplier
	}
	return 1
}

// ExpansionResult is the output of Expand: the base node tagged with the full
// taxonomy and one derivative per taxonomy context, in taxonomy order.
type ExpansionResult struct {
	Base        Node
	Derivatives []Node
}

// DerivativeID returns the id of the derivative of baseID under c.
func DerivativeID(baseID string, c Context) string {
	return baseID + ":" + string(c.Family) + ":" + c.Value
}

// ContextFromDerivativeID recovers the taxonomy context encoded in a
// derivative id suffix.
func ContextFromDerivativeID(id string) (Context, bool) {
	for _, c := range Taxonomy() {
		if strings.HasSuffix(id, ":"+string(c.Family)+":"+c.Value) {
			return c, true
		}
	}
	return Context{}, false
}

// Expand computes the derivatives of a base node. It is pure and
// deterministic: equal inputs yield equal outputs and nothing is stored.
// Timestamps are copied from the base node.
func Expand(base Node) (ExpansionResult, error) {
	if base.FractalLevel != LevelBase || base.ParentID != "" {
		return ExpansionResult{}, fmt.Errorf("%w: %s is at level %d", ErrInvalidExpansionTarget, base.ID, base.FractalLevel)
	}
	if base.ID == "" {
		return ExpansionResult{}, fmt.Errorf("%w: id is required", ErrInvalidNode)
	}

	taxonomy := Taxonomy()
	tagged := base.Clone()
	tagged.Contexts = normalizeContexts(append(tagged.Contexts, taxonomy...))

	derivatives := make([]Node, 0, len(taxonomy))
	for _, c := range taxonomy {
		p := derivativeProfiles[c]
		derivatives = append(derivatives, Node{
			ID:           DerivativeID(base.ID, c),
			Name:         base.Name + " " + c.Value,
			FlowState:    p.flow,
			Archetype:    append([]string(nil), p.archetype...),
			Resonance:    base.Resonance * p.multiplier,
			FractalLevel: LevelDerivative,
			ParentID:     base.ID,
			CreatedAt:    base.CreatedAt,
			UpdatedAt:    base.UpdatedAt,
		})
	}

	return ExpansionResult{Base: tagged, Derivatives: derivatives}, nil
}
