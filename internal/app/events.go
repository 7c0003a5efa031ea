package app

// EventKind identifies emitted match events for dispatch.
type EventKind string

const (
	EventSessionState    EventKind = "session_state"
	EventPlayerJoined    EventKind = "player_joined"
	EventPlayerLeft      EventKind = "player_left"
	EventTurnPhase       EventKind = "turn_phase"
	EventMatchupAssigned EventKind = "matchup_assigned"
	EventHandDraw        EventKind = "hand_draw"
	EventFightResult     EventKind = "fight_result"
	EventRoundComplete   EventKind = "round_complete"
	EventRoundStarted    EventKind = "round_started"
	EventGameComplete    EventKind = "game_complete"
	EventStartupTimeout  EventKind = "startup_timeout"
)

// Event is a match event with optional targeted recipients. LocalOnly events
// surface to the collaborator layer on the authority peer but are never put
// on the wire.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // player IDs; empty means broadcast
	LocalOnly  bool
}

type SessionStatePayload struct {
	CurrentRound int
	RoundsToWin  int
	GameActive   bool
	DraftActive  bool
}

type PlayerJoinedPayload struct {
	PlayerID    string
	DisplayName string
	Score       int
}

type PlayerLeftPayload struct {
	PlayerID string
}

type TurnPhasePayload struct {
	PlayerID     string
	PlayerActing bool
	TurnCount    int
	Energy       int
}

type MatchupAssignedPayload struct {
	PlayerID   string
	OpponentID string
}

type HandDrawPayload struct {
	PlayerID string
	Count    int
	Energy   int
}

type FightResultPayload struct {
	PlayerID string
	Won      bool
	Score    int
}

type RoundCompletePayload struct {
	Round int
}

type RoundStartedPayload struct {
	Round int
}

type GameCompletePayload struct {
	WinnerID string
	Score    int
}

type StartupTimeoutPayload struct {
	Waited int // ticks spent waiting for registrations
}
