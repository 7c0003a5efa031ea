package config

import (
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// MatchRules holds the tunables for a single match. The match loop runs at
// one tick per second, so the *_seconds values are consumed as tick counts.
type MatchRules struct {
	RoundsToWin int `json:"rounds_to_win"`
	MaxPlayers  int `json:"max_players"`
	MaxEnergy   int `json:"max_energy"`
	// CardsPerDraw is the hand refresh size after each opponent phase.
	CardsPerDraw int `json:"cards_per_draw"`
	// OpponentTurnDelaySeconds is how long the simulated opponent "thinks"
	// before handing the turn back. Placeholder for future AI.
	OpponentTurnDelaySeconds int `json:"opponent_turn_delay_seconds"`
	// MatchupSettleDelaySeconds lets a burst of joining players register
	// before the first matchup assignment runs.
	MatchupSettleDelaySeconds int `json:"matchup_settle_delay_seconds"`
	DraftDurationSeconds      int `json:"draft_duration_seconds"`
	// StartupTimeoutSeconds bounds how long a started match waits for the
	// first registration before surfacing a recoverable failure.
	StartupTimeoutSeconds int `json:"startup_timeout_seconds"`
}

var (
	rules    *MatchRules
	loadOnce sync.Once
	loadErr  error
)

// Default returns the rules used when no config file is provided.
func Default() *MatchRules {
	return &MatchRules{
		RoundsToWin:               3,
		MaxPlayers:                4,
		MaxEnergy:                 10,
		CardsPerDraw:              3,
		OpponentTurnDelaySeconds:  2,
		MatchupSettleDelaySeconds: 1,
		DraftDurationSeconds:      15,
		StartupTimeoutSeconds:     30,
	}
}

// LoadMatchRules loads the match rules from the given path, once.
func LoadMatchRules(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = eris.Wrap(err, "read match rules")
			return
		}

		r := Default()
		if err := json.Unmarshal(data, r); err != nil {
			loadErr = eris.Wrap(err, "unmarshal match rules")
			return
		}
		if err := r.Validate(); err != nil {
			loadErr = err
			return
		}
		rules = r
	})
	return loadErr
}

// GetMatchRules returns the loaded rules, or the defaults when no file was
// loaded successfully.
func GetMatchRules() *MatchRules {
	if rules == nil {
		return Default()
	}
	return rules
}

// Validate rejects rule sets the match core cannot run with.
func (r *MatchRules) Validate() error {
	if r.RoundsToWin <= 0 {
		return eris.New("rounds_to_win must be positive")
	}
	if r.MaxPlayers <= 0 {
		return eris.New("max_players must be positive")
	}
	if r.MaxEnergy <= 0 {
		return eris.New("max_energy must be positive")
	}
	if r.OpponentTurnDelaySeconds < 0 || r.DraftDurationSeconds < 0 ||
		r.MatchupSettleDelaySeconds < 0 || r.StartupTimeoutSeconds < 0 {
		return eris.New("delays must not be negative")
	}
	return nil
}
