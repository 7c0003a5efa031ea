package nakama

import (
	"context"
	"testing"

	"brawl/internal/wire"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy
// the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// testPresence is a minimal runtime.Presence for driving the handler.
type testPresence struct {
	userID   string
	username string
}

func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return "session-" + p.userID }
func (p testPresence) GetNodeId() string                 { return "node" }
func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return true }
func (p testPresence) GetUsername() string               { return p.username }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }

// testMessage is a minimal runtime.MatchData.
type testMessage struct {
	testPresence
	opCode int64
	data   []byte
}

func (m testMessage) GetOpCode() int64      { return m.opCode }
func (m testMessage) GetData() []byte       { return m.data }
func (m testMessage) GetReliable() bool     { return true }
func (m testMessage) GetReceiveTime() int64 { return 0 }

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients int // 0 means broadcast to everyone
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	sent         []sentMessage
	labelUpdates int
	lastLabel    string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.sent = append(md.sent, sentMessage{opCode: opCode, data: append([]byte(nil), data...), recipients: len(presences)})
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return md.BroadcastMessage(opCode, data, presences, sender, reliable)
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

func (md *mockDispatcher) countOp(opCode int64) int {
	n := 0
	for _, m := range md.sent {
		if m.opCode == opCode {
			n++
		}
	}
	return n
}

func newTestMatch(t *testing.T) (*matchHandler, *MatchState) {
	t.Helper()
	mh := &matchHandler{}
	state, tickRate, label := mh.MatchInit(context.Background(), noopLogger{}, nil, nil, nil)
	if tickRate != 1 {
		t.Fatalf("tick rate = %d, want 1", tickRate)
	}
	if label == "" {
		t.Fatal("empty initial label")
	}
	ms, ok := state.(*MatchState)
	if !ok {
		t.Fatal("MatchInit did not return *MatchState")
	}
	return mh, ms
}

func joinPlayers(t *testing.T, mh *matchHandler, ms *MatchState, md *mockDispatcher, players ...testPresence) {
	t.Helper()
	presences := make([]runtime.Presence, len(players))
	for i, p := range players {
		presences[i] = p
	}
	if got := mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, md, 0, ms, presences); got == nil {
		t.Fatal("MatchJoin returned nil state")
	}
}

func TestMatchInitBuildsLobbyLabel(t *testing.T) {
	_, ms := newTestMatch(t)

	var label MatchLabel
	if err := json.Unmarshal([]byte(ms.LastLabel), &label); err != nil {
		t.Fatalf("label unmarshal failed: %v", err)
	}
	if label.Phase != "lobby" {
		t.Fatalf("phase = %s, want lobby", label.Phase)
	}
	if label.Open != ms.MaxPlayers {
		t.Fatalf("open = %d, want %d", label.Open, ms.MaxPlayers)
	}
}

func TestMatchJoinRegistersAndBroadcasts(t *testing.T) {
	mh, ms := newTestMatch(t)
	md := &mockDispatcher{}

	joinPlayers(t, mh, ms, md, testPresence{"u1", "Ada"}, testPresence{"u2", "Bela"})

	if ms.OwnerID != "u1" {
		t.Fatalf("owner = %s, want u1", ms.OwnerID)
	}
	if got := md.countOp(wire.OpPlayerJoined); got < 2 {
		t.Fatalf("player joined broadcasts = %d, want >= 2", got)
	}
	if got := md.countOp(wire.OpTurnPhase); got < 2 {
		t.Fatalf("turn phase broadcasts = %d, want >= 2", got)
	}
	if !ms.App.IsPlayerTurn("u1") || !ms.App.IsPlayerTurn("u2") {
		t.Fatal("new players should start in the acting phase")
	}
}

func TestClientStateOpCodeIsRejected(t *testing.T) {
	mh, ms := newTestMatch(t)
	md := &mockDispatcher{}
	joinPlayers(t, mh, ms, md, testPresence{"u1", "Ada"})
	md.sent = nil

	// A client trying to inject a session snapshot is an authority
	// violation: nothing is applied and the sender gets an error.
	forged, _ := wire.Encode(wire.SessionState{CurrentRound: 99, GameActive: true})
	msg := testMessage{testPresence: testPresence{"u1", "Ada"}, opCode: wire.OpSessionState, data: forged}
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, 1, ms, []runtime.MatchData{msg})

	if ms.App.IsGameActive() {
		t.Fatal("forged session state must not be applied")
	}
	if ms.App.CurrentRound() == 99 {
		t.Fatal("forged round counter was applied")
	}
	if md.countOp(wire.OpError) != 1 {
		t.Fatalf("expected exactly one error message, got %d", md.countOp(wire.OpError))
	}
}

func TestNonOwnerCannotStartMatch(t *testing.T) {
	mh, ms := newTestMatch(t)
	md := &mockDispatcher{}
	joinPlayers(t, mh, ms, md, testPresence{"u1", "Ada"}, testPresence{"u2", "Bela"})

	msg := testMessage{testPresence: testPresence{"u2", "Bela"}, opCode: wire.OpStartMatch}
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, 1, ms, []runtime.MatchData{msg})

	if ms.App.IsGameActive() {
		t.Fatal("non-owner start request must be rejected")
	}
}

func TestFullTurnFlowOverMatchLoop(t *testing.T) {
	mh, ms := newTestMatch(t)
	md := &mockDispatcher{}
	joinPlayers(t, mh, ms, md, testPresence{"u1", "Ada"}, testPresence{"u2", "Bela"})

	// Owner starts the match.
	start := testMessage{testPresence: testPresence{"u1", "Ada"}, opCode: wire.OpStartMatch}
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, 1, ms, []runtime.MatchData{start})
	if !ms.App.IsGameActive() {
		t.Fatal("match did not start")
	}

	// Let the settle window elapse so matchups are assigned.
	var tick int64
	for tick = 2; tick < 5; tick++ {
		mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, tick, ms, nil)
	}
	if md.countOp(wire.OpMatchupAssigned) != 2 {
		t.Fatalf("matchup broadcasts = %d, want 2", md.countOp(wire.OpMatchupAssigned))
	}
	opp, ok := ms.App.GetOpponentOf("u1")
	if !ok || opp != "u2" {
		t.Fatalf("u1 opponent = %q, want u2", opp)
	}

	// u1 ends their turn; phase flips immediately.
	end := testMessage{testPresence: testPresence{"u1", "Ada"}, opCode: wire.OpEndTurn}
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, tick, ms, []runtime.MatchData{end})
	if ms.App.IsPlayerTurn("u1") {
		t.Fatal("u1 should be in the opponent phase")
	}

	// The simulated opponent acts after its delay.
	for i := int64(1); i <= 5; i++ {
		mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, tick+i, ms, nil)
	}
	if !ms.App.IsPlayerTurn("u1") {
		t.Fatal("u1 should be back in the acting phase")
	}
	rec, _ := ms.App.GetRecord("u1")
	if rec.TurnCount != 2 {
		t.Fatalf("turn count = %d, want 2", rec.TurnCount)
	}
	if md.countOp(wire.OpHandDraw) != 1 {
		t.Fatalf("hand draw messages = %d, want 1", md.countOp(wire.OpHandDraw))
	}
	// u2 was never touched.
	rec2, _ := ms.App.GetRecord("u2")
	if rec2.TurnCount != 1 || !ms.App.IsPlayerTurn("u2") {
		t.Fatal("u1's cycle must not advance u2")
	}
}

func TestMatchLeaveTerminatesEmptyMatch(t *testing.T) {
	mh, ms := newTestMatch(t)
	md := &mockDispatcher{}
	joinPlayers(t, mh, ms, md, testPresence{"u1", "Ada"})

	got := mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, md, 5, ms, []runtime.Presence{testPresence{"u1", "Ada"}})
	if got != nil {
		t.Fatal("empty match should terminate")
	}
	if ms.App.IsGameActive() {
		t.Fatal("teardown should deactivate the session")
	}
}

func TestMatchLeaveReassignsOwner(t *testing.T) {
	mh, ms := newTestMatch(t)
	md := &mockDispatcher{}
	joinPlayers(t, mh, ms, md, testPresence{"u1", "Ada"}, testPresence{"u2", "Bela"})

	mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, md, 5, ms, []runtime.Presence{testPresence{"u1", "Ada"}})
	if ms.OwnerID != "u2" {
		t.Fatalf("owner = %s, want u2", ms.OwnerID)
	}
}

func TestMatchJoinAttemptRejectsWhenFull(t *testing.T) {
	mh, ms := newTestMatch(t)
	md := &mockDispatcher{}

	players := []testPresence{{"u1", "a"}, {"u2", "b"}, {"u3", "c"}, {"u4", "d"}}
	joinPlayers(t, mh, ms, md, players...)

	_, allowed, reason := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 0, ms, testPresence{"u5", "e"}, nil)
	if allowed {
		t.Fatal("join should be rejected when the match is full")
	}
	if reason == "" {
		t.Fatal("rejection should carry a reason")
	}
}
