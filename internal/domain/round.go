package domain

import "time"

// RoundOutcome - how a round ended
type RoundOutcome string

const (
	RoundOutcomeWin     RoundOutcome = "win"
	RoundOutcomeLose    RoundOutcome = "lose"
	RoundOutcomeTimeout RoundOutcome = "timeout"
)

// Round - persisted history row for one finished round
type Round struct {
	ID           int64          `db:"id" json:"id"`
	RoundID      string         `db:"round_id" json:"round_id"`
	Identity     string         `db:"identity" json:"identity"`
	PromptID     string         `db:"prompt_id" json:"prompt_id"`
	PromptText   string         `db:"prompt_text" json:"prompt_text"`
	Answer       string         `db:"answer" json:"answer,omitempty"`
	Outcome      RoundOutcome   `db:"outcome" json:"outcome"`
	Stake        int64          `db:"stake" json:"stake"`
	WinAmount    int64          `db:"win_amount" json:"win_amount"`
	Streak       int            `db:"streak" json:"streak"`
	Score        float64        `db:"score" json:"score"`
	UsedFallback bool           `db:"used_fallback" json:"used_fallback"`
	Diagnostics  map[string]any `db:"diagnostics" json:"diagnostics,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Player - persisted balance/streak snapshot for an identity
type Player struct {
	Identity  string    `db:"identity" json:"identity"`
	Balance   int64     `db:"balance" json:"balance"`
	Streak    int       `db:"streak" json:"streak"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PlayerStats - aggregate over a player's rounds since a point in time
type PlayerStats struct {
	Identity   string    `json:"identity"`
	Since      time.Time `json:"since"`
	Rounds     int       `json:"rounds"`
	Wins       int       `json:"wins"`
	Timeouts   int       `json:"timeouts"`
	TotalWon   int64     `json:"total_won"`
	TotalStake int64     `json:"total_stake"`
	Fallbacks  int       `json:"fallbacks"`
	AvgScore   float64   `json:"avg_score"`
	PaidOut    int64     `json:"paid_out"` // all-time journaled payouts
}
