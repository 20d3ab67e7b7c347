package graph

import (
	"fmt"

	"go.uber.org/zap"
)

// SeedNodes returns the codex base nodes the store is initialized with.
func SeedNodes() []Node {
	return []Node{
		seed("Void", FlowPlasma, 1.0, "Potential", "Infinite", "Source"),
		seed("Field", FlowGas, 0.8, "Connectivity", "Information", "Flow"),
		seed("Pattern", FlowCrystalline, 0.9, "Form", "Rhythm", "Order"),
		seed("Flow", FlowLiquid, 0.85, "Movement", "Change", "Process"),
		seed("Coherence", FlowCrystalline, 0.95, "Alignment", "Resonance", "Unity"),
		seed("Resonance", FlowWave, 0.88, "Vibration", "Harmony", "Sync"),
		seed("Transformation", FlowColloidal, 0.82, "Change", "Evolution", "Metamorphosis"),
		seed("Integration", FlowColloidal, 0.87, "Unity", "Wholeness", "Synthesis"),
		seed("Emergence", FlowLiving, 0.83, "Novelty", "Spontaneity", "Creation"),
		seed("Wisdom", FlowLiving, 0.92, "Knowledge", "Understanding", "Insight"),
		seed("Consciousness", FlowLiving, 0.96, "Awareness", "Experience", "Presence"),
		seed("Breath", FlowGas, 0.78, "Life", "Energy", "Spirit"),
	}
}

func seed(name string, flow FlowState, resonance float64, archetype ...string) Node {
	return Node{
		ID:           "codex:" + name,
		Name:         name,
		FlowState:    flow,
		Archetype:    archetype,
		Resonance:    resonance,
		FractalLevel: LevelBase,
	}
}

// Seed registers every seed node. It stops at the first failure.
func (s *Store) Seed() error {
	for _, n := range SeedNodes() {
		res, err := s.RegisterBase(n)
		if err != nil {
			return fmt.Errorf("seed %s: %w", n.ID, err)
		}
		s.logger.Info("seeded base node",
			zap.String("node_id", res.Base.ID),
			zap.String("flow_state", string(res.Base.FlowState)),
			zap.Float64("resonance", res.Base.Resonance),
		)
	}
	return nil
}
