// Package integration exercises the brawl match handler through a real Nakama
// server over the client socket API. It is a separate module so its client
// dependencies never leak into the plugin build; run a local server with the
// plugin loaded before running these tests.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/rtapi"
	"github.com/heroiclabs/nakama-go/v2"
)

const (
	ServerKey = "defaultkey"
	Host      = "127.0.0.1"
	Port      = 7350

	RpcQuickBrawl = "quick_brawl"
)

// Client request op codes, mirroring the plugin's wire package. These tests
// deliberately speak the raw protocol rather than importing the server code.
const (
	OpStartMatch  int64 = 1
	OpEndTurn     int64 = 2
	OpFightReport int64 = 3
)

// Authority broadcast op codes.
const (
	OpSessionState    int64 = 101
	OpPlayerJoined    int64 = 102
	OpTurnPhase       int64 = 104
	OpMatchupAssigned int64 = 105
	OpGameComplete    int64 = 110
	OpError           int64 = 111
)

type sessionState struct {
	CurrentRound int  `json:"current_round"`
	RoundsToWin  int  `json:"rounds_to_win"`
	GameActive   bool `json:"game_active"`
	DraftActive  bool `json:"draft_active"`
}

type turnPhase struct {
	PlayerID     string `json:"player_id"`
	PlayerActing bool   `json:"player_acting"`
	TurnCount    int    `json:"turn_count"`
	Energy       int    `json:"energy"`
}

type matchupAssigned struct {
	PlayerID   string `json:"player_id"`
	OpponentID string `json:"opponent_id"`
}

type fightReport struct {
	Won bool `json:"won"`
}

type TestClient struct {
	Client  *nakama.Client
	Session *nakama.Session
	Socket  *nakama.Socket
	UserID  string
}

func NewTestClient(t *testing.T) *TestClient {
	client := nakama.NewClient(ServerKey, Host, Port, false)

	deviceID := fmt.Sprintf("test_device_%d", time.Now().UnixNano())

	session, err := client.AuthenticateDevice(context.Background(), deviceID, true, "")
	if err != nil {
		t.Fatalf("Failed to authenticate: %v", err)
	}

	socket := client.NewSocket()
	if err := socket.Connect(context.Background(), session, true); err != nil {
		t.Fatalf("Failed to connect socket: %v", err)
	}

	return &TestClient{
		Client:  client,
		Session: session,
		Socket:  socket,
		UserID:  session.UserId,
	}
}

func (tc *TestClient) Close() {
	if tc.Socket != nil {
		tc.Socket.Close()
	}
}

// FindAndJoinMatch calls the quick_brawl RPC and joins the returned match ID.
func (tc *TestClient) FindAndJoinMatch(t *testing.T) string {
	rpc, err := tc.Client.RpcFunc(context.Background(), tc.Session, RpcQuickBrawl, "{}")
	if err != nil {
		t.Fatalf("RPC %s failed: %v", RpcQuickBrawl, err)
	}

	matchID := rpc.Payload
	if matchID == "" {
		t.Fatalf("RPC %s returned empty match ID", RpcQuickBrawl)
	}

	if _, err = tc.Socket.JoinMatch(context.Background(), nil, matchID, nil); err != nil {
		t.Fatalf("Failed to join match %s: %v", matchID, err)
	}

	return matchID
}

// WaitForMatchState waits for the next broadcast with the given op code.
func (tc *TestClient) WaitForMatchState(t *testing.T, opCode int64, timeout time.Duration) *rtapi.MatchData {
	ch := make(chan *rtapi.MatchData, 1)

	originalHandler := tc.Socket.OnMatchData
	tc.Socket.OnMatchData = func(data *rtapi.MatchData) {
		if data.OpCode == opCode {
			select {
			case ch <- data:
			default:
			}
		}
		if originalHandler != nil {
			originalHandler(data)
		}
	}

	select {
	case data := <-ch:
		return data
	case <-time.After(timeout):
		t.Fatalf("Timeout waiting for OpCode %d", opCode)
		return nil
	}
}
