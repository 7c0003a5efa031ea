package domain

// Session holds the session-wide scalars every peer must see identically.
// Only the authority's copy is mutable; replicas receive snapshots over the
// broadcast channel and never write back.
type Session struct {
	CurrentRound int
	RoundsToWin  int
	GameActive   bool
	DraftActive  bool
}

// NewSession seeds a fresh match at round one.
func NewSession(roundsToWin int) *Session {
	return &Session{
		CurrentRound: 1,
		RoundsToWin:  roundsToWin,
		GameActive:   true,
	}
}
