package app

import (
	"errors"
	"math/rand"
	"time"

	"brawl/internal/config"
	"brawl/internal/domain"
	"brawl/internal/ports"
)

var (
	ErrMatchNotActive  = errors.New("match not active")
	ErrMatchAlreadyOn  = errors.New("match already active")
	ErrUnknownPlayer   = errors.New("player not found")
	ErrNotPlayerActing = errors.New("player is not in the acting phase")
	ErrDraftActive     = errors.New("draft phase suspends turn progression")
)

// Service is the authoritative match core. It exists only on the authority
// peer: replicas hold a replica.Mirror, which has no mutating API, so the
// "non-authority mutation" error class is unreachable by construction.
//
// All mutation happens on the match loop goroutine (one call at a time), so
// the Service carries no internal locking. Scheduled work is tick-stamped
// state fired by Tick, which makes teardown cancellation trivial: clearing
// the stamps guarantees nothing fires against a dead session.
type Service struct {
	cfg *config.MatchRules
	rng *rand.Rand

	session *domain.Session
	players map[string]*domain.PlayerRecord
	// order is the active-player list in registration order. It doubles as
	// the win-condition traversal order, which is the documented tie-break.
	order    []string
	monsters map[string]ports.Combatant
	// departed records recently-left players by display name so a rejoin
	// under a fresh connection id can be correlated back to its score.
	departed map[string]*domain.PlayerRecord

	// Tick-stamped schedules; zero means not scheduled.
	opponentActAt map[string]int64
	settleAt      int64
	draftEndsAt   int64
	startupUntil  int64
	startedAt     int64

	matchupsAssigned bool
	// lastCompletedRound re-entrancy guard: the round-transition sequence
	// runs at most once per round number.
	lastCompletedRound int
}

// NewService constructs a Service with the provided rules and rng, or
// time-seeded defaults.
func NewService(cfg *config.MatchRules, rng *rand.Rand) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		cfg:           cfg,
		rng:           rng,
		players:       make(map[string]*domain.PlayerRecord),
		monsters:      make(map[string]ports.Combatant),
		departed:      make(map[string]*domain.PlayerRecord),
		opponentActAt: make(map[string]int64),
	}
}

// StartMatch seeds the session and schedules the first matchup assignment
// after a short settle window so a burst of joiners can register first.
func (s *Service) StartMatch(tick int64) ([]Event, error) {
	if s.session != nil && s.session.GameActive {
		return nil, ErrMatchAlreadyOn
	}

	s.session = domain.NewSession(s.cfg.RoundsToWin)
	s.lastCompletedRound = 0
	s.matchupsAssigned = false
	s.startedAt = tick
	s.settleAt = tick + int64(s.cfg.MatchupSettleDelaySeconds)
	s.startupUntil = tick + int64(s.cfg.StartupTimeoutSeconds)

	// A restart after a completed (or timed-out) game reuses the roster but
	// never its results: a record carrying the previous game's score or
	// completion flag would re-satisfy the win condition with zero fights
	// fought in the new game.
	evs := make([]Event, 0, len(s.order)+1)
	for _, id := range s.order {
		rec := s.players[id]
		rec.ResetForMatch()
		evs = append(evs, s.turnPhaseEvent(rec))
	}
	for name := range s.departed {
		delete(s.departed, name)
	}

	return append(evs, s.sessionEvent()), nil
}

// Register inserts a new player record and replicates its initial turn state
// so every peer agrees before gameplay proceeds. Registering a known id is a
// strict no-op, which makes duplicate RPC delivery and same-id rejoin safe.
// A fresh id whose display name matches a recently-departed player adopts
// that player's score.
func (s *Service) Register(playerID, displayName string) []Event {
	if _, known := s.players[playerID]; known {
		return nil
	}

	rec := domain.NewPlayerRecord(playerID, displayName, s.cfg.MaxEnergy)
	if old, ok := s.departed[displayName]; ok && displayName != "" {
		rec.Score = old.Score
		delete(s.departed, displayName)
	}
	if s.session != nil && s.session.GameActive && !s.session.DraftActive && s.matchupsAssigned {
		// Joined while a round is already fighting: this player has no
		// matchup until the next assignment, so the record must not hold
		// the round open waiting for a fight it cannot run.
		rec.FightComplete = true
	}

	s.players[playerID] = rec
	s.order = append(s.order, playerID)

	evs := []Event{
		{
			Kind:    EventPlayerJoined,
			Payload: PlayerJoinedPayload{PlayerID: playerID, DisplayName: displayName, Score: rec.Score},
		},
		s.turnPhaseEvent(rec),
	}

	// Catch-up stream for the joiner: the rest of the roster, its turn
	// state and any standing matchups, then the session snapshot.
	for _, otherID := range s.order {
		if otherID == playerID {
			continue
		}
		other := s.players[otherID]
		evs = append(evs,
			Event{
				Kind:       EventPlayerJoined,
				Payload:    PlayerJoinedPayload{PlayerID: other.PlayerID, DisplayName: other.DisplayName, Score: other.Score},
				Recipients: []string{playerID},
			},
			Event{
				Kind:       EventTurnPhase,
				Payload:    TurnPhasePayload{PlayerID: other.PlayerID, PlayerActing: other.IsPlayerActing(), TurnCount: other.TurnCount, Energy: other.Energy},
				Recipients: []string{playerID},
			},
		)
		if other.OpponentID != "" {
			evs = append(evs, Event{
				Kind:       EventMatchupAssigned,
				Payload:    MatchupAssignedPayload{PlayerID: other.PlayerID, OpponentID: other.OpponentID},
				Recipients: []string{playerID},
			})
		}
	}
	if s.session != nil {
		ev := s.sessionEvent()
		ev.Recipients = []string{playerID}
		evs = append(evs, ev)
	}

	return evs
}

// Unregister removes the player's record. The record map is the only
// per-player collection, so removal is atomic by construction. The required
// completion count shrinks with the active list, so the round may complete
// as a consequence of the departure.
func (s *Service) Unregister(playerID string, tick int64) ([]Event, error) {
	rec, ok := s.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}

	delete(s.players, playerID)
	delete(s.monsters, playerID)
	delete(s.opponentActAt, playerID)
	for i, id := range s.order {
		if id == playerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if rec.DisplayName != "" {
		s.departed[rec.DisplayName] = rec
	}

	evs := []Event{{
		Kind:    EventPlayerLeft,
		Payload: PlayerLeftPayload{PlayerID: playerID},
	}}

	return append(evs, s.maybeCompleteRound(tick)...), nil
}

// RequestEndPlayerTurn flips the player into the opponent phase and schedules
// the simulated opponent action. Requests from any other source state are
// rejected without mutating anything.
func (s *Service) RequestEndPlayerTurn(playerID string, tick int64) ([]Event, error) {
	if s.session == nil || !s.session.GameActive {
		return nil, ErrMatchNotActive
	}
	if s.session.DraftActive {
		return nil, ErrDraftActive
	}
	rec, ok := s.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if rec.TurnPhase != domain.PhasePlayerActing {
		return nil, ErrNotPlayerActing
	}

	rec.TurnPhase = domain.PhaseOpponentActing
	s.opponentActAt[playerID] = tick + int64(s.cfg.OpponentTurnDelaySeconds)

	return []Event{s.turnPhaseEvent(rec)}, nil
}

// CompleteFight is the one-shot fight-finished signal from the battle layer.
// Marking an already-complete player again is a no-op, never a double count.
func (s *Service) CompleteFight(playerID string, won bool, tick int64) ([]Event, error) {
	if s.session == nil || !s.session.GameActive {
		return nil, ErrMatchNotActive
	}
	rec, ok := s.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if s.session.DraftActive {
		// Fights do not run during the draft; a signal landing here is a
		// straggler from the round that just completed. Absorb it.
		return nil, nil
	}
	if rec.FightComplete {
		return nil, nil
	}

	rec.FightComplete = true
	if won {
		rec.Score++
	}

	evs := []Event{{
		Kind:    EventFightResult,
		Payload: FightResultPayload{PlayerID: playerID, Won: won, Score: rec.Score},
	}}

	return append(evs, s.maybeCompleteRound(tick)...), nil
}

// Tick fires any scheduled work that has come due. It is the only place the
// simulated opponent acts, the settle window closes, the draft ends or the
// startup timeout trips, so cancelling all of them is clearing the stamps.
func (s *Service) Tick(tick int64) []Event {
	if s.session == nil {
		return nil
	}

	var evs []Event

	if s.session.GameActive && !s.session.DraftActive {
		// Iterate in registration order so simultaneous completions are
		// processed deterministically.
		for _, playerID := range s.order {
			due, scheduled := s.opponentActAt[playerID]
			if !scheduled || tick < due {
				continue
			}
			delete(s.opponentActAt, playerID)
			evs = append(evs, s.finishOpponentTurn(playerID, tick)...)
			if !s.session.GameActive || s.session.DraftActive {
				break
			}
		}
	}

	if s.settleAt != 0 && tick >= s.settleAt && s.session.GameActive {
		if len(s.order) > 0 {
			s.settleAt = 0
			s.startupUntil = 0
			evs = append(evs, s.assignMatchups()...)
			evs = append(evs, s.maybeCompleteRound(tick)...)
		} else if s.startupUntil != 0 && tick >= s.startupUntil {
			// Recoverable startup failure: nobody registered within the
			// window. Deactivate so the caller can retry StartMatch.
			s.settleAt = 0
			s.startupUntil = 0
			s.session.GameActive = false
			evs = append(evs,
				Event{
					Kind:      EventStartupTimeout,
					Payload:   StartupTimeoutPayload{Waited: int(tick - s.startedAt)},
					LocalOnly: true,
				},
				s.sessionEvent(),
			)
		}
	}

	if s.draftEndsAt != 0 && tick >= s.draftEndsAt && s.session.GameActive {
		s.draftEndsAt = 0
		evs = append(evs, s.startNextRound()...)
	}

	return evs
}

// finishOpponentTurn is the simulated opponent action: hand the turn back,
// advance the cycle counter and replenish this player's resources only.
func (s *Service) finishOpponentTurn(playerID string, tick int64) []Event {
	rec, ok := s.players[playerID]
	if !ok || rec.TurnPhase != domain.PhaseOpponentActing {
		// Player left or the round reset while the action was pending.
		return nil
	}

	rec.TurnPhase = domain.PhasePlayerActing
	rec.TurnCount++
	rec.Energy = rec.MaxEnergy

	evs := []Event{
		{
			Kind:       EventHandDraw,
			Payload:    HandDrawPayload{PlayerID: playerID, Count: s.cfg.CardsPerDraw, Energy: rec.Energy},
			Recipients: []string{playerID},
		},
		s.turnPhaseEvent(rec),
	}

	return append(evs, s.maybeCompleteRound(tick)...)
}

// maybeCompleteRound runs the round-transition sequence when every player on
// the current active list has completed the fight. The sequence runs at most
// once per round number no matter how many triggers land together.
func (s *Service) maybeCompleteRound(tick int64) []Event {
	if s.session == nil || !s.session.GameActive || s.session.DraftActive {
		return nil
	}
	if len(s.order) == 0 || !s.matchupsAssigned {
		return nil
	}
	if s.session.CurrentRound == s.lastCompletedRound {
		return nil
	}
	for _, id := range s.order {
		if !s.players[id].FightComplete {
			return nil
		}
	}

	s.lastCompletedRound = s.session.CurrentRound

	evs := []Event{{
		Kind:    EventRoundComplete,
		Payload: RoundCompletePayload{Round: s.session.CurrentRound},
	}}

	if winner := s.findWinner(); winner != nil {
		s.session.GameActive = false
		s.clearSchedules()
		return append(evs,
			Event{
				Kind:    EventGameComplete,
				Payload: GameCompletePayload{WinnerID: winner.PlayerID, Score: winner.Score},
			},
			s.sessionEvent(),
		)
	}

	// Inter-round draft: suspend turn progression, reset every record to
	// round-start defaults, and schedule the next round.
	s.session.DraftActive = true
	s.draftEndsAt = tick + int64(s.cfg.DraftDurationSeconds)
	s.clearOpponentSchedules()
	for _, id := range s.order {
		rec := s.players[id]
		rec.ResetForRound()
		evs = append(evs, s.turnPhaseEvent(rec))
	}

	return append(evs, s.sessionEvent())
}

// findWinner returns the first record in registration order whose score
// reached the target. Registration order is the documented tie-break for
// players crossing the threshold in the same round.
func (s *Service) findWinner() *domain.PlayerRecord {
	for _, id := range s.order {
		if rec := s.players[id]; rec.Score >= s.session.RoundsToWin {
			return rec
		}
	}
	return nil
}

// startNextRound closes the draft, advances the round counter and re-runs
// the matchup assignor.
func (s *Service) startNextRound() []Event {
	s.session.CurrentRound++
	s.session.DraftActive = false

	evs := []Event{
		{
			Kind:    EventRoundStarted,
			Payload: RoundStartedPayload{Round: s.session.CurrentRound},
		},
		s.sessionEvent(),
	}

	return append(evs, s.assignMatchups()...)
}

// assignMatchups recomputes the round's pairings wholesale and broadcasts
// each pairing individually.
func (s *Service) assignMatchups() []Event {
	matchups := domain.AssignMatchups(s.rng, s.order)
	evs := make([]Event, 0, len(matchups))
	for _, m := range matchups {
		s.players[m.PlayerID].OpponentID = m.OpponentID
		evs = append(evs, Event{
			Kind:    EventMatchupAssigned,
			Payload: MatchupAssignedPayload{PlayerID: m.PlayerID, OpponentID: m.OpponentID},
		})
	}
	s.matchupsAssigned = len(matchups) > 0
	return evs
}

// Teardown cancels all pending scheduled work and deactivates the session.
// Safe to call on a never-started service.
func (s *Service) Teardown() {
	s.clearSchedules()
	if s.session != nil {
		s.session.GameActive = false
	}
}

func (s *Service) clearSchedules() {
	s.clearOpponentSchedules()
	s.settleAt = 0
	s.draftEndsAt = 0
	s.startupUntil = 0
}

func (s *Service) clearOpponentSchedules() {
	for id := range s.opponentActAt {
		delete(s.opponentActAt, id)
	}
}

// AttachCombatant wires the externally-owned combatant for a player. The
// combatant registry is reference-only and may legitimately be sparse.
func (s *Service) AttachCombatant(playerID string, c ports.Combatant) error {
	if _, ok := s.players[playerID]; !ok {
		return ErrUnknownPlayer
	}
	s.monsters[playerID] = c
	return nil
}

// GetOpponentCombatant resolves the combatant the player fights this round.
func (s *Service) GetOpponentCombatant(playerID string) (ports.Combatant, bool) {
	rec, ok := s.players[playerID]
	if !ok || rec.OpponentID == "" {
		return nil, false
	}
	c, ok := s.monsters[rec.OpponentID]
	return c, ok
}

// GetRecord returns the authoritative record for a player.
func (s *Service) GetRecord(playerID string) (*domain.PlayerRecord, bool) {
	rec, ok := s.players[playerID]
	return rec, ok
}

// ActivePlayers returns the active-player list in registration order.
func (s *Service) ActivePlayers() []string {
	return append([]string(nil), s.order...)
}

// CurrentRound returns the session round counter, or zero before StartMatch.
func (s *Service) CurrentRound() int {
	if s.session == nil {
		return 0
	}
	return s.session.CurrentRound
}

// IsGameActive reports whether a match is running.
func (s *Service) IsGameActive() bool {
	return s.session != nil && s.session.GameActive
}

// IsDraftPhaseActive reports whether the inter-round draft is in progress.
func (s *Service) IsDraftPhaseActive() bool {
	return s.session != nil && s.session.DraftActive
}

// IsPlayerTurn reports whether the player half of the cycle is active. It
// deliberately defaults to true for unknown players so UI polling during
// startup races never deadlocks waiting for state that has not replicated.
func (s *Service) IsPlayerTurn(playerID string) bool {
	rec, ok := s.players[playerID]
	if !ok {
		return true
	}
	return rec.IsPlayerActing()
}

// GetOpponentOf returns the owner of the combatant the player fights.
func (s *Service) GetOpponentOf(playerID string) (string, bool) {
	rec, ok := s.players[playerID]
	if !ok || rec.OpponentID == "" {
		return "", false
	}
	return rec.OpponentID, true
}

func (s *Service) sessionEvent() Event {
	return Event{
		Kind: EventSessionState,
		Payload: SessionStatePayload{
			CurrentRound: s.session.CurrentRound,
			RoundsToWin:  s.session.RoundsToWin,
			GameActive:   s.session.GameActive,
			DraftActive:  s.session.DraftActive,
		},
	}
}

func (s *Service) turnPhaseEvent(rec *domain.PlayerRecord) Event {
	return Event{
		Kind: EventTurnPhase,
		Payload: TurnPhasePayload{
			PlayerID:     rec.PlayerID,
			PlayerActing: rec.IsPlayerActing(),
			TurnCount:    rec.TurnCount,
			Energy:       rec.Energy,
		},
	}
}
