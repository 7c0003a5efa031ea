package domain

// TurnPhase identifies which side of a player's turn cycle is acting.
type TurnPhase string

const (
	// PhasePlayerActing is the initial phase where the player may act.
	PhasePlayerActing TurnPhase = "player_acting"
	// PhaseOpponentActing is the simulated opponent half of the cycle.
	PhaseOpponentActing TurnPhase = "opponent_acting"
)

// PlayerRecord holds every per-player field in a single struct. Turn phase,
// turn count and fight completion live together on purpose: there is no
// second map whose key set could drift out of step with this one.
type PlayerRecord struct {
	PlayerID      string
	DisplayName   string
	Score         int
	TurnPhase     TurnPhase
	TurnCount     int
	FightComplete bool
	Energy        int
	MaxEnergy     int
	OpponentID    string // owner of the combatant this player fights; "" until matched
}

// NewPlayerRecord creates a record with round-start defaults.
func NewPlayerRecord(playerID, displayName string, maxEnergy int) *PlayerRecord {
	return &PlayerRecord{
		PlayerID:    playerID,
		DisplayName: displayName,
		TurnPhase:   PhasePlayerActing,
		TurnCount:   1,
		Energy:      maxEnergy,
		MaxEnergy:   maxEnergy,
	}
}

// ResetForRound returns the turn state to round-start defaults. Score and
// identity survive; the matchup is cleared until the assignor re-runs.
func (p *PlayerRecord) ResetForRound() {
	p.TurnPhase = PhasePlayerActing
	p.FightComplete = false
	p.Energy = p.MaxEnergy
	p.OpponentID = ""
}

// ResetForMatch returns the record to match-start defaults. Only identity
// survives; score and turn history belong to the game that produced them.
func (p *PlayerRecord) ResetForMatch() {
	p.Score = 0
	p.TurnCount = 1
	p.ResetForRound()
}

// IsPlayerActing reports whether the player half of the cycle is active.
func (p *PlayerRecord) IsPlayerActing() bool {
	return p.TurnPhase == PhasePlayerActing
}
