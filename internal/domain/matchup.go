package domain

import "math/rand"

// Matchup pairs a player with the owner of the combatant they fight this
// round. For a single-player session the pairing is reflexive.
type Matchup struct {
	PlayerID   string
	OpponentID string
}

// MinPlayersForPairing is the roster size below which the assignor falls
// back to reflexive self-pairing (single-player or testing sessions).
const MinPlayersForPairing = 2

// AssignMatchups produces the round's opponent pairing. With fewer than two
// players each player fights their own combatant; otherwise the list is
// shuffled and player i is paired with player (i+1) mod N, which guarantees
// a fixed-point-free bijection regardless of the permutation drawn.
func AssignMatchups(rng *rand.Rand, playerIDs []string) []Matchup {
	if len(playerIDs) == 0 {
		return nil
	}

	ids := append([]string(nil), playerIDs...)
	if len(ids) < MinPlayersForPairing {
		return []Matchup{{PlayerID: ids[0], OpponentID: ids[0]}}
	}

	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	out := make([]Matchup, len(ids))
	for i, id := range ids {
		out[i] = Matchup{PlayerID: id, OpponentID: ids[(i+1)%len(ids)]}
	}
	return out
}
