package nakama

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"brawl/internal/app"
	"brawl/internal/config"
	"brawl/internal/events"
	"brawl/internal/wire"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
)

// MatchLabel is the queryable match listing entry.
type MatchLabel struct {
	Open  int    `json:"open"`
	Phase string `json:"phase"`
}

// MatchState holds the authoritative runtime state for the match handler.
// The app.Service inside it is the only mutable copy of the session in the
// whole deployment; clients hold replica mirrors fed by the broadcasts this
// handler issues.
type MatchState struct {
	Presences  map[string]runtime.Presence
	App        *app.Service
	Bus        *events.Bus
	OwnerID    string
	MaxPlayers int
	LastLabel  string
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{}, nil
}

type matchHandler struct{}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: initializing brawl match handler")

	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if path, ok := env[EnvRulesPath]; ok && path != "" {
			if err := config.LoadMatchRules(path); err != nil {
				logger.Warn("MatchInit: could not load match rules: %v", err)
			}
		}
	}

	rules := config.GetMatchRules()
	if r, ok := params["rules"].(*config.MatchRules); ok {
		rules = r
	}
	seed := time.Now().UnixNano()
	if s, ok := params["seed"].(int64); ok {
		seed = s
	}

	state := &MatchState{
		Presences:  make(map[string]runtime.Presence),
		App:        app.NewService(rules, rand.New(rand.NewSource(seed))),
		Bus:        events.NewBus(64),
		MaxPlayers: rules.MaxPlayers,
	}

	label, err := buildLabel(state)
	if err != nil {
		logger.Error("MatchInit: failed to marshal label: %v", err)
		return nil, 0, ""
	}
	state.LastLabel = label

	tickRate := 1 // the core treats one tick as one second
	return state, tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	if len(matchState.Presences) >= matchState.MaxPlayers {
		return state, false, "match full"
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p
		if matchState.OwnerID == "" {
			matchState.OwnerID = p.GetUserId()
			logger.Debug("MatchJoin: owner set to %s", matchState.OwnerID)
		}

		evs := matchState.App.Register(p.GetUserId(), p.GetUsername())
		mh.dispatchEvents(matchState, dispatcher, logger, evs)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())

		evs, err := matchState.App.Unregister(p.GetUserId(), tick)
		if err != nil {
			logger.Warn("MatchLeave: unregister %s: %v", p.GetUserId(), err)
			continue
		}
		mh.dispatchEvents(matchState, dispatcher, logger, evs)
	}

	if matchState.OwnerID != "" {
		if _, stillHere := matchState.Presences[matchState.OwnerID]; !stillHere {
			matchState.OwnerID = ""
			for _, id := range matchState.App.ActivePlayers() {
				if _, connected := matchState.Presences[id]; connected {
					matchState.OwnerID = id
					logger.Debug("MatchLeave: owner reassigned to %s", id)
					break
				}
			}
		}
	}

	if len(matchState.Presences) == 0 {
		logger.Info("MatchLeave: terminating empty match")
		matchState.App.Teardown()
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	for _, msg := range messages {
		mh.handleMessage(matchState, dispatcher, logger, tick, msg)
	}

	// Scheduled work: simulated opponent turns, the matchup settle window,
	// draft end and the startup deadline all fire here.
	evs := matchState.App.Tick(tick)
	mh.dispatchEvents(matchState, dispatcher, logger, evs)

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) handleMessage(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, tick int64, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	// The state stream is authority-only. A client message carrying one of
	// those op codes is an authority violation: rejected, never applied,
	// and never silently promoted.
	if wire.IsStateOp(msg.GetOpCode()) {
		logger.Warn("MatchLoop: authority violation: client %s sent state op %d", senderID, msg.GetOpCode())
		mh.sendError(state, dispatcher, logger, senderID, 403, "state op codes are authority-only")
		return
	}

	switch msg.GetOpCode() {
	case wire.OpStartMatch:
		if senderID != state.OwnerID {
			logger.Warn("MatchLoop: %s tried to start the match but is not owner", senderID)
			mh.sendError(state, dispatcher, logger, senderID, 403, "only the match owner can start")
			return
		}
		evs, err := state.App.StartMatch(tick)
		if err != nil {
			logger.Warn("MatchLoop: start match: %v", err)
			mh.sendError(state, dispatcher, logger, senderID, 409, err.Error())
			return
		}
		logger.Info("MatchLoop: match started by %s with %d players", senderID, len(state.App.ActivePlayers()))
		mh.dispatchEvents(state, dispatcher, logger, evs)

	case wire.OpEndTurn:
		evs, err := state.App.RequestEndPlayerTurn(senderID, tick)
		if err != nil {
			logger.Warn("MatchLoop: end turn for %s rejected: %v", senderID, err)
			mh.sendError(state, dispatcher, logger, senderID, 400, err.Error())
			return
		}
		mh.dispatchEvents(state, dispatcher, logger, evs)

	case wire.OpFightReport:
		report, err := wire.Decode[wire.FightReport](msg.GetData())
		if err != nil {
			logger.Warn("MatchLoop: invalid fight report from %s: %v", senderID, err)
			mh.sendError(state, dispatcher, logger, senderID, 400, "invalid fight report")
			return
		}
		evs, err := state.App.CompleteFight(senderID, report.Won, tick)
		if err != nil {
			logger.Warn("MatchLoop: fight report for %s rejected: %v", senderID, err)
			mh.sendError(state, dispatcher, logger, senderID, 400, err.Error())
			return
		}
		mh.dispatchEvents(state, dispatcher, logger, evs)

	default:
		logger.Warn("MatchLoop: unknown op code received: %d", msg.GetOpCode())
	}
}

// dispatchEvents puts app events on the wire and raises them locally. The
// reliable broadcast keeps per-player turn updates in issue order, which is
// the ordering guarantee the replica mirrors rely on.
func (mh *matchHandler) dispatchEvents(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, evs []app.Event) {
	for _, ev := range evs {
		mh.publishLocal(state, ev)
		if ev.LocalOnly {
			continue
		}

		opCode, payload, ok := wireMessage(ev)
		if !ok {
			logger.Warn("dispatchEvents: unmapped event kind %s", ev.Kind)
			continue
		}

		data, err := wire.Encode(payload)
		if err != nil {
			logger.Error("dispatchEvents: encode %s: %v", ev.Kind, err)
			continue
		}

		var recipients []runtime.Presence
		if len(ev.Recipients) > 0 {
			for _, id := range ev.Recipients {
				if p, connected := state.Presences[id]; connected {
					recipients = append(recipients, p)
				}
			}
			// The event had intended recipients and none are connected:
			// it must not fall back to a broadcast.
			if len(recipients) == 0 {
				continue
			}
		}

		if err := dispatcher.BroadcastMessage(opCode, data, recipients, nil, true); err != nil {
			logger.Error("dispatchEvents: broadcast %s: %v", ev.Kind, err)
		}
	}
}

// wireMessage maps an app event to its op code and wire payload.
func wireMessage(ev app.Event) (int64, any, bool) {
	switch ev.Kind {
	case app.EventSessionState:
		p := ev.Payload.(app.SessionStatePayload)
		return wire.OpSessionState, wire.SessionState{
			CurrentRound: p.CurrentRound,
			RoundsToWin:  p.RoundsToWin,
			GameActive:   p.GameActive,
			DraftActive:  p.DraftActive,
		}, true
	case app.EventPlayerJoined:
		p := ev.Payload.(app.PlayerJoinedPayload)
		return wire.OpPlayerJoined, wire.PlayerJoined{PlayerID: p.PlayerID, DisplayName: p.DisplayName, Score: p.Score}, true
	case app.EventPlayerLeft:
		p := ev.Payload.(app.PlayerLeftPayload)
		return wire.OpPlayerLeft, wire.PlayerLeft{PlayerID: p.PlayerID}, true
	case app.EventTurnPhase:
		p := ev.Payload.(app.TurnPhasePayload)
		return wire.OpTurnPhase, wire.TurnPhase{PlayerID: p.PlayerID, PlayerActing: p.PlayerActing, TurnCount: p.TurnCount, Energy: p.Energy}, true
	case app.EventMatchupAssigned:
		p := ev.Payload.(app.MatchupAssignedPayload)
		return wire.OpMatchupAssigned, wire.MatchupAssigned{PlayerID: p.PlayerID, OpponentID: p.OpponentID}, true
	case app.EventHandDraw:
		p := ev.Payload.(app.HandDrawPayload)
		return wire.OpHandDraw, wire.HandDraw{PlayerID: p.PlayerID, Count: p.Count, Energy: p.Energy}, true
	case app.EventFightResult:
		p := ev.Payload.(app.FightResultPayload)
		return wire.OpFightResult, wire.FightResult{PlayerID: p.PlayerID, Won: p.Won, Score: p.Score}, true
	case app.EventRoundComplete:
		p := ev.Payload.(app.RoundCompletePayload)
		return wire.OpRoundComplete, wire.RoundComplete{Round: p.Round}, true
	case app.EventRoundStarted:
		p := ev.Payload.(app.RoundStartedPayload)
		return wire.OpRoundStarted, wire.RoundStarted{Round: p.Round}, true
	case app.EventGameComplete:
		p := ev.Payload.(app.GameCompletePayload)
		return wire.OpGameComplete, wire.GameComplete{WinnerID: p.WinnerID, Score: p.Score}, true
	default:
		return 0, nil, false
	}
}

// publishLocal raises the authority-side notification events so collaborators
// on this peer (lobby roster, audio, logs) see the same stream replicas do.
func (mh *matchHandler) publishLocal(state *MatchState, ev app.Event) {
	switch ev.Kind {
	case app.EventPlayerJoined:
		p := ev.Payload.(app.PlayerJoinedPayload)
		if len(ev.Recipients) > 0 {
			return // catch-up copy for a joiner, not a new registration
		}
		state.Bus.Publish(events.Event{
			Kind:    events.KindPlayerAdded,
			Payload: events.PlayerAddedPayload{PlayerID: p.PlayerID, DisplayName: p.DisplayName},
		})
	case app.EventPlayerLeft:
		p := ev.Payload.(app.PlayerLeftPayload)
		state.Bus.Publish(events.Event{
			Kind:    events.KindPlayerRemoved,
			Payload: events.PlayerRemovedPayload{PlayerID: p.PlayerID},
		})
	case app.EventTurnPhase:
		if len(ev.Recipients) > 0 {
			return
		}
		p := ev.Payload.(app.TurnPhasePayload)
		state.Bus.Publish(events.Event{
			Kind:    events.KindTurnPhaseChanged,
			Payload: events.TurnPhaseChangedPayload{PlayerID: p.PlayerID, PlayerActing: p.PlayerActing, TurnCount: p.TurnCount},
		})
	case app.EventMatchupAssigned:
		if len(ev.Recipients) > 0 {
			return
		}
		p := ev.Payload.(app.MatchupAssignedPayload)
		state.Bus.Publish(events.Event{
			Kind:    events.KindMatchupAssigned,
			Payload: events.MatchupAssignedPayload{PlayerID: p.PlayerID, OpponentID: p.OpponentID},
		})
	case app.EventHandDraw:
		p := ev.Payload.(app.HandDrawPayload)
		state.Bus.Publish(events.Event{
			Kind:    events.KindHandDrawn,
			Payload: events.HandDrawnPayload{PlayerID: p.PlayerID, Count: p.Count},
		})
	case app.EventRoundComplete:
		p := ev.Payload.(app.RoundCompletePayload)
		state.Bus.Publish(events.Event{
			Kind:    events.KindRoundComplete,
			Payload: events.RoundCompletePayload{Round: p.Round},
		})
	case app.EventRoundStarted:
		p := ev.Payload.(app.RoundStartedPayload)
		state.Bus.Publish(events.Event{
			Kind:    events.KindRoundChanged,
			Payload: events.RoundChangedPayload{Round: p.Round},
		})
	case app.EventGameComplete:
		p := ev.Payload.(app.GameCompletePayload)
		state.Bus.Publish(events.Event{
			Kind:    events.KindGameComplete,
			Payload: events.GameCompletePayload{WinnerID: p.WinnerID, Score: p.Score},
		})
	case app.EventStartupTimeout:
		state.Bus.Publish(events.Event{
			Kind:    events.KindStartupTimeout,
			Payload: ev.Payload,
		})
	}
}

// sendError sends a wire.Error privately to the offending client.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	data, err := wire.Encode(wire.Error{Code: code, Message: message})
	if err != nil {
		logger.Error("sendError: encode: %v", err)
		return
	}

	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("sendError: presence %s not found", userID)
		return
	}

	if err := dispatcher.BroadcastMessage(wire.OpError, data, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Error("sendError: broadcast: %v", err)
	}
}

func buildLabel(state *MatchState) (string, error) {
	phase := "lobby"
	switch {
	case state.App.IsGameActive() && state.App.IsDraftPhaseActive():
		phase = "draft"
	case state.App.IsGameActive():
		phase = "fighting"
	}

	label := MatchLabel{
		Open:  state.MaxPlayers - len(state.Presences),
		Phase: phase,
	}
	data, err := json.Marshal(label)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := buildLabel(state)
	if err != nil {
		logger.Error("updateLabel: marshal: %v", err)
		return
	}
	if label == state.LastLabel {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("updateLabel: update: %v", err)
		return
	}
	state.LastLabel = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: match terminated for reason %d", reason)
	if matchState, ok := state.(*MatchState); ok {
		// Pending opponent-turn delays must never fire after teardown.
		matchState.App.Teardown()
	}
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
