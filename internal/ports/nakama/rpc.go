package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RpcFindBrawl searches for a match with open seats and returns its ID,
// creating a fresh match when none is joinable.
//
// Payload: unused for now.
// Returns: string containing the match ID.
func RpcFindBrawl(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	// Filter on the "open" key of the JSON label: at least one open seat.
	limit := 1
	authoritative := true
	labelQuery := fmt.Sprintf("+label.%s:>=1", MatchLabelKey_OpenSeats)
	minSize := 0
	maxSize := 4

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, labelQuery)
	if err != nil {
		logger.Error("RpcFindBrawl [user:%s]: failed to list matches: %v", userID, err)
		return "", err
	}

	if len(matches) > 0 {
		matchID := matches[0].MatchId
		logger.Info("RpcFindBrawl [user:%s]: found existing match %s", userID, matchID)
		return matchID, nil
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameBrawl, nil)
	if err != nil {
		logger.Error("RpcFindBrawl [user:%s]: failed to create match: %v", userID, err)
		return "", err
	}

	logger.Info("RpcFindBrawl [user:%s]: created new match %s", userID, matchID)
	return matchID, nil
}
