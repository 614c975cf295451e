package domain

// WinThreshold is the minimum normalized score for a non-basic answer
const WinThreshold = 0.5

// Verdict is the evaluator's judgement for one round. Immutable once produced.
type Verdict struct {
	IsWinner     bool           `json:"is_winner"`
	Score        float64        `json:"score"`
	UsedFallback bool           `json:"used_fallback"`
	Diagnostics  map[string]any `json:"diagnostics,omitempty"`
}

// BetStatus is the ledger's coarse snapshot of in-flight state for an identity
type BetStatus struct {
	HasUnresolvedBet   bool `json:"has_unresolved_bet"`
	HasSubmittedAnswer bool `json:"has_submitted_answer"`
}

// PendingBetBlocksNewRound reports a bet that was placed but never answered
func (s BetStatus) PendingBetBlocksNewRound() bool {
	return s.HasUnresolvedBet && !s.HasSubmittedAnswer
}

// AwaitingResolution reports an answered bet the ledger has not resolved yet
func (s BetStatus) AwaitingResolution() bool {
	return s.HasUnresolvedBet && s.HasSubmittedAnswer
}

// Clean reports that nothing is in flight on the ledger
func (s BetStatus) Clean() bool {
	return !s.HasUnresolvedBet
}
