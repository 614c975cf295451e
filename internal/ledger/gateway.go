package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"arebasic/internal/domain"
)

// PayloadKind tells a real answer apart from the sentinels used for recovery
type PayloadKind string

const (
	KindAnswer           PayloadKind = "answer"
	KindTimeout          PayloadKind = "timeout"
	KindClearPending     PayloadKind = "clear_pending"
	KindReleaseSubmitted PayloadKind = "release_submitted"
)

// AnswerPayload is what gets written to the ledger; the text itself never leaves the process
type AnswerPayload struct {
	Kind PayloadKind `json:"kind"`
	Hash string      `json:"answer_hash"`
}

// IsSentinel reports payloads that only exist to unblock the ledger
func (p AnswerPayload) IsSentinel() bool {
	return p.Kind != KindAnswer
}

// NewAnswerPayload hashes a player's answer
func NewAnswerPayload(answer string) AnswerPayload {
	return AnswerPayload{Kind: KindAnswer, Hash: hashText(answer)}
}

// NewSentinelPayload builds a recovery submission, unique per call
func NewSentinelPayload(kind PayloadKind, now time.Time) AnswerPayload {
	return AnswerPayload{
		Kind: kind,
		Hash: hashText("reset_game_state_" + string(kind) + "_" + strconv.FormatInt(now.UnixNano(), 10)),
	}
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Receipt identifies an accepted mutating call
type Receipt struct {
	TxHash string `json:"tx_hash"`
}

// Gateway is the only path to the stake ledger. Implementations never retry:
// callers decide which operations are safe to repeat.
type Gateway interface {
	GetBalance(ctx context.Context, identity string) (int64, error)
	GetBetStatus(ctx context.Context, identity string) (domain.BetStatus, error)
	PlaceBet(ctx context.Context, identity string, amount int64) (Receipt, error)
	SubmitAnswer(ctx context.Context, identity string, payload AnswerPayload) (Receipt, error)
}

// Settler is implemented by ledgers that accept winnings back
type Settler interface {
	Payout(ctx context.Context, identity string, amount int64) (Receipt, error)
}
