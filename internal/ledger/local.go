package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"arebasic/internal/domain"

	_ "modernc.org/sqlite"
)

// LocalLedger is a sqlite-backed stand-in for the game contract. It keeps the
// contract's rules: one unresolved bet per identity, and the only way to
// release a bet is another answer submission. State survives restarts, so an
// aborted round leaves the same orphaned bet the real contract would.
type LocalLedger struct {
	db              *sql.DB
	mu              sync.Mutex
	startingBalance int64
	autoResolve     bool
	now             func() time.Time
}

// LocalOption tweaks a LocalLedger
type LocalOption func(*LocalLedger)

// WithManualResolution leaves answered bets unresolved until a second submission
// or Resolve, mimicking a slow oracle
func WithManualResolution() LocalOption {
	return func(l *LocalLedger) { l.autoResolve = false }
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) LocalOption {
	return func(l *LocalLedger) { l.now = now }
}

// OpenLocalLedger opens (or creates) the ledger database at path; ":memory:" works for tests
func OpenLocalLedger(path string, startingBalance int64, opts ...LocalOption) (*LocalLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a :memory: database lives on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	l := &LocalLedger{
		db:              db,
		startingBalance: startingBalance,
		autoResolve:     true,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *LocalLedger) migrate() error {
	accounts := `
		CREATE TABLE IF NOT EXISTS accounts (
			identity TEXT PRIMARY KEY,
			balance INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`
	if _, err := l.db.Exec(accounts); err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}

	bets := `
		CREATE TABLE IF NOT EXISTS bets (
			identity TEXT PRIMARY KEY,
			amount INTEGER NOT NULL,
			answer_hash TEXT,
			answer_kind TEXT,
			placed_at INTEGER NOT NULL,
			answered_at INTEGER
		);`
	if _, err := l.db.Exec(bets); err != nil {
		return fmt.Errorf("create bets table: %w", err)
	}
	return nil
}

// Close releases the database
func (l *LocalLedger) Close() error {
	return l.db.Close()
}

// GetBalance returns the account balance, opening the account with the starting grant on first use
func (l *LocalLedger) GetBalance(ctx context.Context, identity string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureAccount(ctx, identity); err != nil {
		return 0, newError("getBalance", ReasonUnreachable, err.Error())
	}

	var balance int64
	err := l.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE identity = ?`, identity).Scan(&balance)
	if err != nil {
		return 0, newError("getBalance", ReasonUnreachable, err.Error())
	}
	return balance, nil
}

// GetBetStatus reports whether identity has an unresolved bet and whether it was answered
func (l *LocalLedger) GetBetStatus(ctx context.Context, identity string) (domain.BetStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var answeredAt sql.NullInt64
	err := l.db.QueryRowContext(ctx, `SELECT answered_at FROM bets WHERE identity = ?`, identity).Scan(&answeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BetStatus{}, nil
	}
	if err != nil {
		return domain.BetStatus{}, newError("getBetStatus", ReasonUnreachable, err.Error())
	}
	return domain.BetStatus{HasUnresolvedBet: true, HasSubmittedAnswer: answeredAt.Valid}, nil
}

// PlaceBet debits amount and opens the identity's single unresolved bet
func (l *LocalLedger) PlaceBet(ctx context.Context, identity string, amount int64) (Receipt, error) {
	const op = "placeBet"
	if amount <= 0 {
		return Receipt{}, newError(op, ReasonInsufficientFunds, "amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureAccount(ctx, identity); err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bets WHERE identity = ?`, identity).Scan(&exists)
	if err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}
	if exists > 0 {
		return Receipt{}, newError(op, ReasonAlreadyHasBet, "")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE identity = ? AND balance >= ?`,
		amount, identity, amount)
	if err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Receipt{}, newError(op, ReasonInsufficientFunds, "")
	}

	now := l.now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bets (identity, amount, placed_at) VALUES (?, ?, ?)`,
		identity, amount, now.UnixNano()); err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}

	if err := tx.Commit(); err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}
	return Receipt{TxHash: hashText("bet" + identity + strconv.FormatInt(now.UnixNano(), 10))}, nil
}

// SubmitAnswer records the answer hash. A submission against an already
// answered bet resolves it, which is the only release lever the contract has.
func (l *LocalLedger) SubmitAnswer(ctx context.Context, identity string, payload AnswerPayload) (Receipt, error) {
	const op = "submitAnswer"

	l.mu.Lock()
	defer l.mu.Unlock()

	var answeredAt sql.NullInt64
	err := l.db.QueryRowContext(ctx, `SELECT answered_at FROM bets WHERE identity = ?`, identity).Scan(&answeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, newError(op, ReasonNoPendingBet, "player has not placed a bet")
	}
	if err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}

	now := l.now()
	if answeredAt.Valid || l.autoResolve {
		_, err = l.db.ExecContext(ctx, `DELETE FROM bets WHERE identity = ?`, identity)
	} else {
		_, err = l.db.ExecContext(ctx,
			`UPDATE bets SET answer_hash = ?, answer_kind = ?, answered_at = ? WHERE identity = ?`,
			payload.Hash, string(payload.Kind), now.UnixNano(), identity)
	}
	if err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}
	return Receipt{TxHash: hashText("answer" + payload.Hash + strconv.FormatInt(now.UnixNano(), 10))}, nil
}

// Payout credits winnings to the account
func (l *LocalLedger) Payout(ctx context.Context, identity string, amount int64) (Receipt, error) {
	const op = "payout"
	if amount <= 0 {
		return Receipt{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureAccount(ctx, identity); err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}
	if _, err := l.db.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE identity = ?`, amount, identity); err != nil {
		return Receipt{}, newError(op, ReasonUnreachable, err.Error())
	}
	now := l.now()
	return Receipt{TxHash: hashText("payout" + identity + strconv.FormatInt(now.UnixNano(), 10))}, nil
}

// Resolve plays the oracle: drops an answered bet. Unanswered bets stay put.
func (l *LocalLedger) Resolve(ctx context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx,
		`DELETE FROM bets WHERE identity = ? AND answered_at IS NOT NULL`, identity)
	if err != nil {
		return newError("resolve", ReasonUnreachable, err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newError("resolve", ReasonNoPendingBet, "")
	}
	return nil
}

func (l *LocalLedger) ensureAccount(ctx context.Context, identity string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO accounts (identity, balance) VALUES (?, ?) ON CONFLICT(identity) DO NOTHING`,
		identity, l.startingBalance)
	return err
}
