package wire

// Small structured messages carried over the reliable ordered Nakama
// dispatcher. Per-player turn updates for the same player are never
// reordered relative to each other because the dispatcher preserves the
// issue order of reliable broadcasts.

// SessionState is the full replicated property snapshot. Replicas apply it
// idempotently; the authority sends one after every session-level mutation.
type SessionState struct {
	CurrentRound int  `json:"current_round"`
	RoundsToWin  int  `json:"rounds_to_win"`
	GameActive   bool `json:"game_active"`
	DraftActive  bool `json:"draft_active"`
}

// PlayerJoined announces a registration, carrying enough of the record for
// replicas to seed their mirror entry.
type PlayerJoined struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}

// PlayerLeft announces an unregistration.
type PlayerLeft struct {
	PlayerID string `json:"player_id"`
}

// TurnPhase replicates one player's turn state. Cross-player ordering is not
// guaranteed and not needed; per-player ordering is.
type TurnPhase struct {
	PlayerID     string `json:"player_id"`
	PlayerActing bool   `json:"player_acting"`
	TurnCount    int    `json:"turn_count"`
	Energy       int    `json:"energy"`
}

// MatchupAssigned replicates a single pairing so a replica can resolve "my
// opponent's combatant" without the full roster.
type MatchupAssigned struct {
	PlayerID   string `json:"player_id"`
	OpponentID string `json:"opponent_id"`
}

// HandDraw tells one player (privately) to draw cards and shows the
// replenished resource pool. Card contents are owned by the battle layer.
type HandDraw struct {
	PlayerID string `json:"player_id"`
	Count    int    `json:"count"`
	Energy   int    `json:"energy"`
}

// FightResult replicates a player's fight completion and updated score.
type FightResult struct {
	PlayerID string `json:"player_id"`
	Won      bool   `json:"won"`
	Score    int    `json:"score"`
}

// RoundComplete announces that every active player finished the round.
type RoundComplete struct {
	Round int `json:"round"`
}

// RoundStarted announces the end of the draft phase and the new round number.
type RoundStarted struct {
	Round int `json:"round"`
}

// GameComplete names the winner and ends the session.
type GameComplete struct {
	WinnerID string `json:"winner_id"`
	Score    int    `json:"score"`
}

// EndTurnRequest asks the authority to end the sender's player phase. The
// actor is taken from the message envelope, never from the payload.
type EndTurnRequest struct{}

// StartMatchRequest asks the authority to start the match.
type StartMatchRequest struct{}

// FightReport is the one-shot fight-finished signal from the battle layer.
type FightReport struct {
	Won bool `json:"won"`
}

// Error is sent privately to the offending client.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
