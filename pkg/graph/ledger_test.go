package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contribute(t *testing.T, s *Store, nodeID, userID, content string) Receipt {
	t.Helper()
	r, err := s.CreateContribution(NewContribution{NodeID: nodeID, UserID: userID, Content: content})
	require.NoError(t, err)
	return r
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", ContentHash("hello"))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ContentHash(""))
}

func TestLedger_DefaultResonance(t *testing.T) {
	s := newTestStore(t)
	r := contribute(t, s, "codex:Void", "u1", "a thought")
	assert.Equal(t, DefaultResonance, r.Resonance)

	c, err := s.GetContribution(r.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultResonance, c.Resonance)
	assert.Nil(t, c.Context)
	assert.Equal(t, r.Timestamp, c.Timestamp)
}

func TestLedger_DoesNotRequireExistingNode(t *testing.T) {
	s := newTestStore(t)
	r := contribute(t, s, "nowhere:Node", "u1", "orphan")
	assert.Len(t, s.GetContributionsByNode("nowhere:Node"), 1)
	assert.NotEmpty(t, r.ID)
}

func TestLedger_AppendOnly(t *testing.T) {
	s := newTestStore(t)

	ctx := MustContext(FamilySymbolic, ValueArchetypal)
	resonance := 0.9
	r, err := s.CreateContribution(NewContribution{
		NodeID:    "codex:Void",
		UserID:    "u1",
		Content:   "first",
		Resonance: &resonance,
		Context:   &ctx,
	})
	require.NoError(t, err)
	first, err := s.GetContribution(r.ID)
	require.NoError(t, err)

	// the caller's context value is copied in
	ctx = MustContext(FamilySymbolic, ValuePersonal)

	for i := 0; i < 5; i++ {
		contribute(t, s, "codex:Void", "u2", strings.Repeat("x", i+1))
	}

	byNode := s.GetContributionsByNode("codex:Void")
	require.Len(t, byNode, 6)
	assert.Equal(t, first, byNode[0])
	assert.Equal(t, MustContext(FamilySymbolic, ValueArchetypal), *byNode[0].Context)

	byUser := s.GetContributionsByUser("u1")
	require.Len(t, byUser, 1)
	assert.Equal(t, first, byUser[0])

	assert.Len(t, s.GetContributionsByUser("u2"), 5)
	assert.Empty(t, s.GetContributionsByUser("nobody"))
}

func TestLedger_SameContentSharesHash(t *testing.T) {
	s := newTestStore(t)

	a := contribute(t, s, "codex:Void", "u1", "same words")
	b := contribute(t, s, "codex:Field", "u2", "same words")

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.NotEqual(t, a.ID, b.ID)

	first, err := s.GetContributionByHash(a.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, a.ID, first.ID, "lookup returns the first stored match")
	assert.Equal(t, a.ContentHash, first.Hash())

	all := s.GetContributionsByHash(a.ContentHash)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)

	upper, err := s.GetContributionByHash(strings.ToUpper(a.ContentHash))
	require.NoError(t, err)
	assert.Equal(t, a.ID, upper.ID)

	_, err = s.GetContributionByHash(ContentHash("never stored"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_RejectsMalformed(t *testing.T) {
	s := newTestStore(t)
	bad := Context{Family: FamilyScientific, Value: "mystical"}

	tests := []struct {
		name string
		nc   NewContribution
	}{
		{"missing node", NewContribution{UserID: "u1", Content: "x"}},
		{"missing user", NewContribution{NodeID: "n", Content: "x"}},
		{"bad context", NewContribution{NodeID: "n", UserID: "u1", Content: "x", Context: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateContribution(tt.nc)
			assert.ErrorIs(t, err, ErrInvalidContribution)
			assert.ErrorIs(t, err, ErrBadRequest)
		})
	}
	assert.Empty(t, s.Contributions())
	assert.Equal(t, 0, s.Stats().TotalContributions)
}

func TestLedger_AcceptsEmptyContent(t *testing.T) {
	s := newTestStore(t)

	r, err := s.CreateContribution(NewContribution{NodeID: "codex:Void", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", r.ContentHash)

	c, err := s.GetContributionByHash(r.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, r.ID, c.ID)
	assert.Empty(t, c.Content)
	assert.Equal(t, 1, s.Stats().TotalContributions)
}

func TestLedger_RecentContributions(t *testing.T) {
	s := newTestStore(t)
	var ids []string
	for _, content := range []string{"one", "two", "three"} {
		ids = append(ids, contribute(t, s, "codex:Void", "u1", content).ID)
	}

	recent := s.RecentContributions(2)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)

	assert.Len(t, s.RecentContributions(0), 3)
	assert.Len(t, s.RecentContributions(10), 3)
	assert.Len(t, s.Contributions(), 3)
}
