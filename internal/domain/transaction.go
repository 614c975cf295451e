package domain

import "time"

// Transaction types written to the balance journal
const (
	TxTypeStake  = "stake"
	TxTypePayout = "payout"
)

type Transaction struct {
	ID        int64                  `db:"id" json:"id"`
	Identity  string                 `db:"identity" json:"identity"`
	Type      string                 `db:"type" json:"type"`
	Amount    int64                  `db:"amount" json:"amount"`
	Meta      map[string]interface{} `db:"meta" json:"meta,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}
