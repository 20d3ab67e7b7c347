package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alphaNode() Node {
	return Node{
		ID:           "root:Alpha",
		Name:         "Alpha",
		FlowState:    FlowPlasma,
		Archetype:    []string{"Origin"},
		Resonance:    1.0,
		FractalLevel: LevelBase,
	}
}

func TestExpand_Idempotent(t *testing.T) {
	first, err := Expand(alphaNode())
	require.NoError(t, err)
	second, err := Expand(alphaNode())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExpand_Completeness(t *testing.T) {
	res, err := Expand(alphaNode())
	require.NoError(t, err)

	tax := Taxonomy()
	require.Len(t, res.Derivatives, len(tax))
	assert.Equal(t, tax, res.Base.Contexts)

	ids := make(map[string]bool)
	for i, d := range res.Derivatives {
		assert.False(t, ids[d.ID], "duplicate derivative %s", d.ID)
		ids[d.ID] = true

		c, ok := ContextFromDerivativeID(d.ID)
		require.True(t, ok, d.ID)
		assert.Equal(t, tax[i], c)
		assert.Equal(t, DerivativeID("root:Alpha", c), d.ID)
		assert.Equal(t, "Alpha "+c.Value, d.Name)
		assert.Equal(t, LevelDerivative, d.FractalLevel)
		assert.Equal(t, "root:Alpha", d.ParentID)
		assert.Empty(t, d.Contexts)
		assert.NoError(t, d.Validate())
	}
}

func TestExpand_Resonance(t *testing.T) {
	base := alphaNode()
	base.Resonance = 0.9
	res, err := Expand(base)
	require.NoError(t, err)

	want := map[string]float64{
		"root:Alpha:scientific:empirical":     0.72,
		"root:Alpha:scientific:theoretical":   0.81,
		"root:Alpha:scientific:experimental":  0.63,
		"root:Alpha:symbolic:archetypal":      0.81,
		"root:Alpha:symbolic:cultural":        0.72,
		"root:Alpha:symbolic:personal":        0.63,
		"root:Alpha:physical-state:phase":     0.72,
		"root:Alpha:physical-state:flow":      0.81,
		"root:Alpha:physical-state:coherence": 0.72,
	}
	for _, d := range res.Derivatives {
		assert.InDelta(t, want[d.ID], d.Resonance, 1e-9, d.ID)
	}
}

func TestExpand_DerivativeProfiles(t *testing.T) {
	res, err := Expand(alphaNode())
	require.NoError(t, err)

	byID := make(map[string]Node)
	for _, d := range res.Derivatives {
		byID[d.ID] = d
	}
	empirical := byID["root:Alpha:scientific:empirical"]
	assert.Equal(t, FlowCrystalline, empirical.FlowState)
	assert.Equal(t, []string{"Measurement", "Observation", "Data"}, empirical.Archetype)

	flow := byID["root:Alpha:physical-state:flow"]
	assert.Equal(t, FlowLiquid, flow.FlowState)
	assert.Equal(t, []string{"Movement", "Direction", "Current"}, flow.Archetype)
}

func TestExpand_RejectsNonBase(t *testing.T) {
	child := alphaNode()
	child.ID = "root:Alpha:scientific:empirical"
	child.FractalLevel = LevelDerivative
	child.ParentID = "root:Alpha"

	_, err := Expand(child)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidExpansionTarget))
}

func TestExpand_DoesNotAliasInput(t *testing.T) {
	base := alphaNode()
	res, err := Expand(base)
	require.NoError(t, err)

	res.Base.Archetype[0] = "changed"
	assert.Equal(t, "Origin", base.Archetype[0])
	assert.Empty(t, base.Contexts)
}

func TestMultiplier(t *testing.T) {
	assert.Equal(t, 0.8, Multiplier(MustContext(FamilyScientific, ValueEmpirical)))
	assert.Equal(t, 0.9, Multiplier(MustContext(FamilyPhysicalState, ValueFlow)))
	assert.Equal(t, 1.0, Multiplier(Context{Family: FamilyHybrid, Value: "x"}))
}
