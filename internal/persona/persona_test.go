package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScoreboardHasAllArchetypesAtZero(t *testing.T) {
	s := NewScoreboard()
	snap := s.Snapshot()
	require.Len(t, snap, 6)
	for _, p := range All {
		assert.Equal(t, 0, snap[p], "score for %s", p)
	}
}

func TestWinnerAllZeroIsGuardian(t *testing.T) {
	assert.Equal(t, Guardian, NewScoreboard().Winner())
}

func TestWinnerTieBreaksByEnumerationOrder(t *testing.T) {
	s := NewScoreboard()
	s.Add(Guardian, 2)
	s.Add(Planner, 2)
	assert.Equal(t, Guardian, s.Winner())

	s = NewScoreboard()
	s.Add(Maverick, 1)
	s.Add(Explorer, 1)
	assert.Equal(t, Explorer, s.Winner())
}

func TestEvaluateScoresMultipleArchetypes(t *testing.T) {
	s := NewScoreboard()
	hits := s.Evaluate("I like to RESEARCH and plan, it feels safe")

	// "research" belongs to both planner and independent.
	assert.Equal(t, 4, hits)
	assert.Equal(t, 2, s.Score(Planner))
	assert.Equal(t, 1, s.Score(Independent))
	assert.Equal(t, 1, s.Score(Guardian))
	assert.Equal(t, Planner, s.Winner())
}

func TestEvaluateMultiWordKeyword(t *testing.T) {
	s := NewScoreboard()
	s.Evaluate("I chase a high return even if it is a gamble")
	assert.Equal(t, 2, s.Score(Maverick))
}

func TestParse(t *testing.T) {
	p, ok := Parse(" Maverick ")
	require.True(t, ok)
	assert.Equal(t, Maverick, p)

	_, ok = Parse("")
	assert.False(t, ok)
	_, ok = Parse("warm")
	assert.False(t, ok)
}

func TestPrefixAndHeadline(t *testing.T) {
	assert.Equal(t, "For someone bold like you, ", Maverick.Prefix())
	assert.Equal(t, "", Persona("nobody").Prefix())
	assert.Equal(t, "Guardian – Safety-First and Risk-Averse", Guardian.Headline())
}
