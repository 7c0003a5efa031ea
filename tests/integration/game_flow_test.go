package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMatchStartAndFirstTurn(t *testing.T) {
	clients := make([]*TestClient, 2)
	for i := 0; i < 2; i++ {
		clients[i] = NewTestClient(t)
		defer clients[i].Close()
	}
	t.Log("Created 2 clients")

	matchID := clients[0].FindAndJoinMatch(t)
	t.Logf("Client 0 created/joined match: %s", matchID)

	if _, err := clients[1].Socket.JoinMatch(context.Background(), nil, matchID, nil); err != nil {
		t.Fatalf("Client 1 failed to join match: %v", err)
	}

	// Both joins must be registered before the owner starts.
	time.Sleep(1 * time.Second)

	t.Log("Client 0 sending StartMatch...")
	if _, err := clients[0].Socket.SendMatchState(context.Background(), matchID, OpStartMatch, nil, nil); err != nil {
		t.Fatalf("Failed to send StartMatch: %v", err)
	}

	for i, c := range clients {
		data := c.WaitForMatchState(t, OpSessionState, 5*time.Second)

		var state sessionState
		if err := json.Unmarshal(data.Data, &state); err != nil {
			t.Fatalf("Client %d failed to unmarshal session state: %v", i, err)
		}
		if !state.GameActive {
			t.Errorf("Client %d expected an active game, got %+v", i, state)
		}
		if state.CurrentRound != 1 {
			t.Errorf("Client %d expected round 1, got %d", i, state.CurrentRound)
		}
	}

	// Matchups land after the settle window.
	for i, c := range clients {
		data := c.WaitForMatchState(t, OpMatchupAssigned, 10*time.Second)

		var pairing matchupAssigned
		if err := json.Unmarshal(data.Data, &pairing); err != nil {
			t.Fatalf("Client %d failed to unmarshal matchup: %v", i, err)
		}
		if pairing.OpponentID == "" {
			t.Errorf("Client %d got a matchup without an opponent", i)
		}
		if pairing.PlayerID == pairing.OpponentID {
			t.Errorf("Client %d paired with itself in a 2-player match", i)
		}
	}

	t.Log("Client 0 ending its turn...")
	if _, err := clients[0].Socket.SendMatchState(context.Background(), matchID, OpEndTurn, nil, nil); err != nil {
		t.Fatalf("Failed to send EndTurn: %v", err)
	}

	// First broadcast flips to the simulated opponent, the next one hands the
	// turn back after the opponent delay.
	for {
		data := clients[0].WaitForMatchState(t, OpTurnPhase, 10*time.Second)

		var phase turnPhase
		if err := json.Unmarshal(data.Data, &phase); err != nil {
			t.Fatalf("Failed to unmarshal turn phase: %v", err)
		}
		if phase.PlayerID != clients[0].UserID {
			continue
		}
		if !phase.PlayerActing {
			t.Logf("Opponent acting for client 0 (turn %d)", phase.TurnCount)
			continue
		}
		if phase.TurnCount != 2 {
			t.Errorf("Expected turn 2 after the opponent acted, got %d", phase.TurnCount)
		}
		break
	}

	t.Log("Turn cycle completed over a live server")
}

func TestForgedStateOpIsRejected(t *testing.T) {
	client := NewTestClient(t)
	defer client.Close()

	matchID := client.FindAndJoinMatch(t)

	// A client writing to the authority-only stream must get an error back
	// and the forged broadcast must never be applied.
	if _, err := client.Socket.SendMatchState(context.Background(), matchID, OpSessionState, []byte(`{"game_active":true}`), nil); err != nil {
		t.Fatalf("Failed to send forged state op: %v", err)
	}

	data := client.WaitForMatchState(t, OpError, 5*time.Second)
	if len(data.Data) == 0 {
		t.Fatal("Expected an error payload")
	}
	t.Logf("Server rejected forged state op: %s", data.Data)
}
