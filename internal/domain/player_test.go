package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPlayerRecordDefaults(t *testing.T) {
	p := NewPlayerRecord("u1", "Ada", 5)
	require.Equal(t, PhasePlayerActing, p.TurnPhase)
	require.Equal(t, 1, p.TurnCount)
	require.Equal(t, 0, p.Score)
	require.False(t, p.FightComplete)
	require.Equal(t, 5, p.Energy)
	require.Equal(t, 5, p.MaxEnergy)
	require.Empty(t, p.OpponentID)
}

func TestResetForRoundKeepsScoreAndIdentity(t *testing.T) {
	p := NewPlayerRecord("u1", "Ada", 5)
	p.Score = 2
	p.TurnPhase = PhaseOpponentActing
	p.TurnCount = 7
	p.FightComplete = true
	p.Energy = 0
	p.OpponentID = "u2"

	p.ResetForRound()

	require.Equal(t, 2, p.Score)
	require.Equal(t, "u1", p.PlayerID)
	require.Equal(t, "Ada", p.DisplayName)
	require.Equal(t, PhasePlayerActing, p.TurnPhase)
	require.False(t, p.FightComplete)
	require.Equal(t, 5, p.Energy)
	require.Empty(t, p.OpponentID)
	// Turn count is a lifetime counter, not a per-round one.
	require.Equal(t, 7, p.TurnCount)
}
