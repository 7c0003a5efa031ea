// Package replica holds the read-only state mirror a non-authority peer
// maintains from the authority's broadcast stream. The mirror exposes no
// mutating API: a replica simply cannot obtain a handle that writes match
// state, so authority violations are structurally impossible on this side.
package replica

import (
	"sync"

	"brawl/internal/events"
	"brawl/internal/wire"

	"github.com/heroiclabs/nakama-common/runtime"
)

// maxPending bounds the buffer for broadcasts that reference a player the
// mirror has not seen join yet. Beyond it, messages are discarded with a log
// instead of growing without bound.
const maxPending = 64

// PlayerView is the replica's copy of one player's replicated fields.
type PlayerView struct {
	PlayerID     string
	DisplayName  string
	Score        int
	PlayerActing bool
	TurnCount    int
	Energy       int
	OpponentID   string
	FightDone    bool
}

type pendingMsg struct {
	opCode int64
	data   []byte
}

// Mirror applies the authority's broadcast stream idempotently and serves
// local queries. Broadcasts for the same player arrive in issue order
// (reliable dispatcher stream); cross-player ordering is not assumed.
type Mirror struct {
	mu      sync.Mutex
	logger  runtime.Logger
	bus     *events.Bus
	session wire.SessionState
	seeded  bool
	players map[string]*PlayerView
	pending map[string][]pendingMsg
	winner  string
}

// NewMirror creates an empty mirror publishing local events to bus.
// Bus may be nil when no presentation layer subscribes.
func NewMirror(logger runtime.Logger, bus *events.Bus) *Mirror {
	return &Mirror{
		logger:  logger,
		bus:     bus,
		players: make(map[string]*PlayerView),
		pending: make(map[string][]pendingMsg),
	}
}

// Apply consumes one broadcast. Unknown op codes and undecodable payloads
// are logged and dropped; a replica never crashes on a message it cannot
// interpret. Duplicate deliveries are safe to re-apply.
func (m *Mirror) Apply(opCode int64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(opCode, data)
}

func (m *Mirror) apply(opCode int64, data []byte) {
	switch opCode {
	case wire.OpSessionState:
		msg, err := wire.Decode[wire.SessionState](data)
		if err != nil {
			m.logger.Warn("mirror: bad session state: %v", err)
			return
		}
		prevRound := m.session.CurrentRound
		m.session = msg
		m.seeded = true
		if msg.CurrentRound != prevRound {
			m.publish(events.Event{
				Kind:    events.KindRoundChanged,
				Payload: events.RoundChangedPayload{Round: msg.CurrentRound},
			})
		}

	case wire.OpPlayerJoined:
		msg, err := wire.Decode[wire.PlayerJoined](data)
		if err != nil {
			m.logger.Warn("mirror: bad player joined: %v", err)
			return
		}
		if _, known := m.players[msg.PlayerID]; known {
			return // duplicate join broadcast
		}
		m.players[msg.PlayerID] = &PlayerView{
			PlayerID:     msg.PlayerID,
			DisplayName:  msg.DisplayName,
			Score:        msg.Score,
			PlayerActing: true,
			TurnCount:    1,
		}
		m.publish(events.Event{
			Kind:    events.KindPlayerAdded,
			Payload: events.PlayerAddedPayload{PlayerID: msg.PlayerID, DisplayName: msg.DisplayName},
		})
		m.drainPending(msg.PlayerID)

	case wire.OpPlayerLeft:
		msg, err := wire.Decode[wire.PlayerLeft](data)
		if err != nil {
			m.logger.Warn("mirror: bad player left: %v", err)
			return
		}
		if _, known := m.players[msg.PlayerID]; !known {
			return
		}
		delete(m.players, msg.PlayerID)
		delete(m.pending, msg.PlayerID)
		m.publish(events.Event{
			Kind:    events.KindPlayerRemoved,
			Payload: events.PlayerRemovedPayload{PlayerID: msg.PlayerID},
		})

	case wire.OpTurnPhase:
		msg, err := wire.Decode[wire.TurnPhase](data)
		if err != nil {
			m.logger.Warn("mirror: bad turn phase: %v", err)
			return
		}
		p, known := m.players[msg.PlayerID]
		if !known {
			m.buffer(msg.PlayerID, opCode, data)
			return
		}
		changed := p.PlayerActing != msg.PlayerActing || p.TurnCount != msg.TurnCount
		p.PlayerActing = msg.PlayerActing
		p.TurnCount = msg.TurnCount
		p.Energy = msg.Energy
		if !changed {
			return // duplicate delivery, state already converged
		}
		m.publish(events.Event{
			Kind:    events.KindTurnPhaseChanged,
			Payload: events.TurnPhaseChangedPayload{PlayerID: msg.PlayerID, PlayerActing: msg.PlayerActing, TurnCount: msg.TurnCount},
		})

	case wire.OpMatchupAssigned:
		msg, err := wire.Decode[wire.MatchupAssigned](data)
		if err != nil {
			m.logger.Warn("mirror: bad matchup: %v", err)
			return
		}
		p, known := m.players[msg.PlayerID]
		if !known {
			m.buffer(msg.PlayerID, opCode, data)
			return
		}
		p.OpponentID = msg.OpponentID
		m.publish(events.Event{
			Kind:    events.KindMatchupAssigned,
			Payload: events.MatchupAssignedPayload{PlayerID: msg.PlayerID, OpponentID: msg.OpponentID},
		})

	case wire.OpHandDraw:
		msg, err := wire.Decode[wire.HandDraw](data)
		if err != nil {
			m.logger.Warn("mirror: bad hand draw: %v", err)
			return
		}
		if p, known := m.players[msg.PlayerID]; known {
			p.Energy = msg.Energy
		}
		m.publish(events.Event{
			Kind:    events.KindHandDrawn,
			Payload: events.HandDrawnPayload{PlayerID: msg.PlayerID, Count: msg.Count},
		})

	case wire.OpFightResult:
		msg, err := wire.Decode[wire.FightResult](data)
		if err != nil {
			m.logger.Warn("mirror: bad fight result: %v", err)
			return
		}
		p, known := m.players[msg.PlayerID]
		if !known {
			m.buffer(msg.PlayerID, opCode, data)
			return
		}
		p.FightDone = true
		p.Score = msg.Score

	case wire.OpRoundComplete:
		msg, err := wire.Decode[wire.RoundComplete](data)
		if err != nil {
			m.logger.Warn("mirror: bad round complete: %v", err)
			return
		}
		// Pairings die with the round; the next assignment broadcast
		// repopulates them, so serving last round's opponent here would
		// disagree with the authority during the draft window.
		for _, p := range m.players {
			p.FightDone = false
			p.OpponentID = ""
		}
		m.publish(events.Event{
			Kind:    events.KindRoundComplete,
			Payload: events.RoundCompletePayload{Round: msg.Round},
		})

	case wire.OpRoundStarted:
		// Round number travels in the session snapshot; this opcode only
		// marks the boundary for presentation.
		if _, err := wire.Decode[wire.RoundStarted](data); err != nil {
			m.logger.Warn("mirror: bad round started: %v", err)
		}

	case wire.OpGameComplete:
		msg, err := wire.Decode[wire.GameComplete](data)
		if err != nil {
			m.logger.Warn("mirror: bad game complete: %v", err)
			return
		}
		if m.winner == msg.WinnerID {
			return // duplicate delivery
		}
		m.winner = msg.WinnerID
		m.publish(events.Event{
			Kind:    events.KindGameComplete,
			Payload: events.GameCompletePayload{WinnerID: msg.WinnerID, Score: msg.Score},
		})

	default:
		m.logger.Warn("mirror: unknown op code %d discarded", opCode)
	}
}

// buffer parks a message about a not-yet-known player until its join
// broadcast arrives, or discards it when the buffer is full.
func (m *Mirror) buffer(playerID string, opCode int64, data []byte) {
	total := 0
	for _, msgs := range m.pending {
		total += len(msgs)
	}
	if total >= maxPending {
		m.logger.Warn("mirror: pending buffer full, discarding op %d for %s", opCode, playerID)
		return
	}
	m.pending[playerID] = append(m.pending[playerID], pendingMsg{opCode: opCode, data: data})
}

func (m *Mirror) drainPending(playerID string) {
	msgs := m.pending[playerID]
	delete(m.pending, playerID)
	for _, msg := range msgs {
		m.apply(msg.opCode, msg.data)
	}
}

func (m *Mirror) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

// CurrentRound returns the last replicated round counter, zero before the
// first session snapshot.
func (m *Mirror) CurrentRound() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.CurrentRound
}

// IsGameActive reports the last replicated activity flag.
func (m *Mirror) IsGameActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.GameActive
}

// IsDraftPhaseActive reports the last replicated draft flag.
func (m *Mirror) IsDraftPhaseActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.DraftActive
}

// IsPlayerTurn reports whether the player half of the cycle is active. For
// a player the mirror does not know yet it deliberately returns true: the
// permissive default keeps UI responsive during startup races instead of
// deadlocking on state that has not replicated.
func (m *Mirror) IsPlayerTurn(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, known := m.players[playerID]
	if !known {
		return true
	}
	return p.PlayerActing
}

// GetOpponentOf returns the replicated matchup for a player.
func (m *Mirror) GetOpponentOf(playerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, known := m.players[playerID]
	if !known || p.OpponentID == "" {
		return "", false
	}
	return p.OpponentID, true
}

// GetPlayer returns a copy of the replica's view of a player.
func (m *Mirror) GetPlayer(playerID string) (PlayerView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, known := m.players[playerID]
	if !known {
		return PlayerView{}, false
	}
	return *p, true
}

// Winner returns the winner id once a game-complete broadcast arrived.
func (m *Mirror) Winner() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winner, m.winner != ""
}

// PlayerCount returns the size of the replicated roster.
func (m *Mirror) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}
