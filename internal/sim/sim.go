package sim

import (
	"context"
	"fmt"

	"brawl/internal/config"
	"brawl/internal/ports/nakama"
	"brawl/internal/replica"
	"brawl/internal/wire"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config controls one simulated match.
type Config struct {
	Players     int
	RoundsToWin int
	Seed        int64
	MaxTicks    int64
	Logger      zerolog.Logger
}

// Report summarizes a finished simulation.
type Report struct {
	WinnerID    string
	WinnerName  string
	Rounds      int
	Ticks       int64
	Broadcasts  int
	FinalScores map[string]int
	Converged   bool
	Divergences []string
}

type peer struct {
	presence *simPresence
	mirror   *replica.Mirror

	actedRound    int
	reportedRound int
}

// Run drives the authoritative match handler with scripted loopback peers
// until the game completes or MaxTicks elapses. Each peer ends one turn per
// round, lets the simulated opponent act, then reports its fight outcome;
// round winners rotate through the roster so every configuration eventually
// produces a champion.
func Run(cfg Config) (*Report, error) {
	if cfg.Players < 1 {
		return nil, eris.New("sim: at least one player required")
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = 600
	}

	rules := config.Default()
	if cfg.RoundsToWin > 0 {
		rules.RoundsToWin = cfg.RoundsToWin
	}
	if cfg.Players > rules.MaxPlayers {
		rules.MaxPlayers = cfg.Players
	}
	if err := rules.Validate(); err != nil {
		return nil, eris.Wrap(err, "sim: invalid rules")
	}

	ctx := context.Background()
	logger := NewRuntimeLogger(cfg.Logger)
	dispatcher := newLoopbackDispatcher()

	m, err := nakama.NewMatch(ctx, logger, nil, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sim: create match")
	}

	params := map[string]interface{}{"rules": rules, "seed": cfg.Seed}
	state, _, _ := m.MatchInit(ctx, logger, nil, nil, params)
	if state == nil {
		return nil, eris.New("sim: match init failed")
	}

	peers := make([]*peer, 0, cfg.Players)
	for i := 0; i < cfg.Players; i++ {
		p := &peer{
			presence: &simPresence{
				userID:   uuid.NewString(),
				username: fmt.Sprintf("player-%d", i+1),
			},
			mirror: replica.NewMirror(logger, nil),
		}
		dispatcher.attach(p.presence.userID, p.mirror)
		peers = append(peers, p)
	}

	var tick int64
	for _, p := range peers {
		next, allowed, reason := m.MatchJoinAttempt(ctx, logger, nil, nil, dispatcher, tick, state, p.presence, nil)
		state = next
		if !allowed {
			return nil, eris.Errorf("sim: join rejected for %s: %s", p.presence.username, reason)
		}
		state = m.MatchJoin(ctx, logger, nil, nil, dispatcher, tick, state, []runtime.Presence{p.presence})
	}

	owner := peers[0]
	started := false

	for tick = 1; tick <= cfg.MaxTicks; tick++ {
		var messages []runtime.MatchData

		if !started {
			messages = append(messages, clientMessage(owner, tick, wire.OpStartMatch, nil))
			started = true
		}

		for _, p := range peers {
			if msg := p.nextMove(peers, tick); msg != nil {
				messages = append(messages, msg)
			}
		}

		state = m.MatchLoop(ctx, logger, nil, nil, dispatcher, tick, state, messages)
		if state == nil {
			return nil, eris.New("sim: match terminated mid-run")
		}

		if done(peers) {
			break
		}
	}

	matchState, ok := state.(*nakama.MatchState)
	if !ok {
		return nil, eris.New("sim: unexpected match state type")
	}
	if !done(peers) {
		return nil, eris.Errorf("sim: no winner after %d ticks", cfg.MaxTicks)
	}

	report := buildReport(matchState, peers, dispatcher, tick)

	m.MatchTerminate(ctx, logger, nil, nil, dispatcher, tick, state, 0)
	return report, nil
}

// nextMove decides the peer's client message for this tick from its own
// replica view only. Peers never read authority state.
func (p *peer) nextMove(peers []*peer, tick int64) runtime.MatchData {
	mirror := p.mirror
	if !mirror.IsGameActive() || mirror.IsDraftPhaseActive() {
		return nil
	}

	view, known := mirror.GetPlayer(p.presence.userID)
	if !known || !view.PlayerActing || view.FightDone {
		return nil
	}

	round := mirror.CurrentRound()
	if p.reportedRound >= round {
		return nil
	}

	if p.actedRound < round {
		p.actedRound = round
		return clientMessage(p, tick, wire.OpEndTurn, nil)
	}

	won := p.presence.userID == roundWinner(peers, round)
	data, err := wire.Encode(wire.FightReport{Won: won})
	if err != nil {
		return nil
	}
	p.reportedRound = round
	return clientMessage(p, tick, wire.OpFightReport, data)
}

// roundWinner rotates the scripted winner through the roster by round.
func roundWinner(peers []*peer, round int) string {
	return peers[(round-1)%len(peers)].presence.userID
}

func clientMessage(p *peer, tick int64, opCode int64, data []byte) runtime.MatchData {
	return &simMessage{simPresence: p.presence, opCode: opCode, data: data, receiveTime: tick}
}

func done(peers []*peer) bool {
	for _, p := range peers {
		if _, ok := p.mirror.Winner(); !ok {
			return false
		}
	}
	return true
}

// buildReport checks that every replica converged on the authority's final
// state and collects the scoreboard.
func buildReport(matchState *nakama.MatchState, peers []*peer, dispatcher *loopbackDispatcher, tick int64) *Report {
	report := &Report{
		Ticks:       tick,
		Broadcasts:  dispatcher.sent,
		Rounds:      matchState.App.CurrentRound(),
		FinalScores: make(map[string]int),
		Converged:   true,
	}

	for _, p := range peers {
		id := p.presence.userID
		record, ok := matchState.App.GetRecord(id)
		if !ok {
			report.diverge("authority lost record for %s", p.presence.username)
			continue
		}
		report.FinalScores[p.presence.username] = record.Score

		view, known := p.mirror.GetPlayer(id)
		if !known {
			report.diverge("mirror of %s never saw itself join", p.presence.username)
			continue
		}
		if view.Score != record.Score {
			report.diverge("%s: mirror score %d, authority score %d", p.presence.username, view.Score, record.Score)
		}
		if p.mirror.CurrentRound() != matchState.App.CurrentRound() {
			report.diverge("%s: mirror round %d, authority round %d", p.presence.username, p.mirror.CurrentRound(), matchState.App.CurrentRound())
		}
		if p.mirror.IsGameActive() != matchState.App.IsGameActive() {
			report.diverge("%s: mirror and authority disagree on game activity", p.presence.username)
		}
	}

	if winnerID, ok := peers[0].mirror.Winner(); ok {
		report.WinnerID = winnerID
		for _, p := range peers {
			if p.presence.userID == winnerID {
				report.WinnerName = p.presence.username
			}
			if other, ok := p.mirror.Winner(); !ok || other != winnerID {
				report.diverge("%s disagrees on the winner", p.presence.username)
			}
		}
	}

	return report
}

func (r *Report) diverge(format string, v ...interface{}) {
	r.Converged = false
	r.Divergences = append(r.Divergences, fmt.Sprintf(format, v...))
}
