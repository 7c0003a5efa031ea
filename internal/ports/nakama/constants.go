package nakama

const (
	// RpcQuickBrawl is the Nakama RPC id clients call to find or create a
	// joinable match.
	RpcQuickBrawl = "quick_brawl"

	// MatchNameBrawl is the authoritative match handler name registered
	// with Nakama.
	MatchNameBrawl = "brawl_match"

	// MatchLabelKey_OpenSeats is the label key used for open-seat queries.
	MatchLabelKey_OpenSeats = "open"

	// EnvRulesPath optionally points the handler at a match-rules JSON file.
	EnvRulesPath = "brawl_rules_path"
)
