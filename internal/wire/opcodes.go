package wire

// Op codes for client requests and authority broadcasts. Requests stay below
// MinStateOp; every code at or above it originates from the authority only,
// so a client message carrying one is an authority violation and is rejected
// by the match handler.
const (
	// Client -> Authority requests
	OpStartMatch  int64 = 1
	OpEndTurn     int64 = 2
	OpFightReport int64 = 3

	// MinStateOp is the lower bound of the authority-only state stream.
	MinStateOp int64 = 100

	// Authority -> Client state stream
	OpSessionState    int64 = 101
	OpPlayerJoined    int64 = 102
	OpPlayerLeft      int64 = 103
	OpTurnPhase       int64 = 104
	OpMatchupAssigned int64 = 105
	OpHandDraw        int64 = 106 // sent privately
	OpFightResult     int64 = 107
	OpRoundComplete   int64 = 108
	OpRoundStarted    int64 = 109
	OpGameComplete    int64 = 110
	OpError           int64 = 111 // sent privately
)

// IsStateOp reports whether the op code belongs to the authority-only stream.
func IsStateOp(op int64) bool {
	return op >= MinStateOp
}
