package service

import (
	"context"
	"time"

	"arebasic/internal/domain"
	"arebasic/internal/logger"
)

// HistoryStore persists finished rounds, player snapshots and the balance journal
type HistoryStore interface {
	SaveRound(ctx context.Context, round *domain.Round) error
	ListRounds(ctx context.Context, identity string, limit int) ([]*domain.Round, error)
	GetPlayer(ctx context.Context, identity string) (*domain.Player, error)
	SavePlayer(ctx context.Context, player *domain.Player) error
	AddTransaction(ctx context.Context, tx *domain.Transaction) error
}

// HistoryReporter is implemented by stores that can also answer read-side queries
type HistoryReporter interface {
	TopPlayers(ctx context.Context, limit int) ([]*domain.Player, error)
	Stats(ctx context.Context, identity string, since time.Time) (*domain.PlayerStats, error)
	ListTransactions(ctx context.Context, identity string, limit int) ([]*domain.Transaction, error)
}

// HistoryService records what sessions do. Recording never fails the caller;
// a nil store turns it into a no-op.
type HistoryService struct {
	store HistoryStore
}

// NewHistoryService creates a new history service
func NewHistoryService(store HistoryStore) *HistoryService {
	return &HistoryService{store: store}
}

// Enabled reports whether anything is actually persisted
func (s *HistoryService) Enabled() bool {
	return s != nil && s.store != nil
}

// RecordRound stores a finished round and the player snapshot after it
func (s *HistoryService) RecordRound(ctx context.Context, round *domain.Round, balance int64) {
	if !s.Enabled() {
		return
	}
	if err := s.store.SaveRound(ctx, round); err != nil {
		logger.Error("failed to save round", "error", err, "identity", round.Identity, "round_id", round.RoundID)
	}
	s.SavePlayer(ctx, round.Identity, balance, round.Streak)
}

// RecordStake journals the debit taken when a bet is confirmed
func (s *HistoryService) RecordStake(ctx context.Context, identity, roundID string, amount int64) {
	s.addTransaction(ctx, identity, domain.TxTypeStake, -amount, map[string]interface{}{
		"round_id": roundID,
	})
}

// RecordPayout journals winnings credited to the session
func (s *HistoryService) RecordPayout(ctx context.Context, identity, roundID string, amount int64, streak int, txHash string) {
	meta := map[string]interface{}{
		"round_id": roundID,
		"streak":   streak,
	}
	if txHash != "" {
		meta["tx_hash"] = txHash
	}
	s.addTransaction(ctx, identity, domain.TxTypePayout, amount, meta)
}

// SavePlayer upserts the balance/streak snapshot
func (s *HistoryService) SavePlayer(ctx context.Context, identity string, balance int64, streak int) {
	if !s.Enabled() {
		return
	}
	p := &domain.Player{Identity: identity, Balance: balance, Streak: streak}
	if err := s.store.SavePlayer(ctx, p); err != nil {
		logger.Error("failed to save player", "error", err, "identity", identity)
	}
}

// LoadPlayer returns the last snapshot, nil when unknown or disabled
func (s *HistoryService) LoadPlayer(ctx context.Context, identity string) *domain.Player {
	if !s.Enabled() {
		return nil
	}
	p, err := s.store.GetPlayer(ctx, identity)
	if err != nil {
		logger.Warn("failed to load player", "error", err, "identity", identity)
		return nil
	}
	return p
}

// Recent returns the latest rounds for an identity
func (s *HistoryService) Recent(ctx context.Context, identity string, limit int) ([]*domain.Round, error) {
	if !s.Enabled() {
		return []*domain.Round{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListRounds(ctx, identity, limit)
}

// Leaderboard lists players by current streak
func (s *HistoryService) Leaderboard(ctx context.Context, limit int) ([]*domain.Player, error) {
	r, ok := s.reporter()
	if !ok {
		return []*domain.Player{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return r.TopPlayers(ctx, limit)
}

// Stats aggregates an identity's rounds since the given time
func (s *HistoryService) Stats(ctx context.Context, identity string, since time.Time) (*domain.PlayerStats, error) {
	r, ok := s.reporter()
	if !ok {
		return &domain.PlayerStats{Identity: identity, Since: since}, nil
	}
	return r.Stats(ctx, identity, since)
}

// Journal returns the latest stake/payout entries
func (s *HistoryService) Journal(ctx context.Context, identity string, limit int) ([]*domain.Transaction, error) {
	r, ok := s.reporter()
	if !ok {
		return []*domain.Transaction{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return r.ListTransactions(ctx, identity, limit)
}

func (s *HistoryService) reporter() (HistoryReporter, bool) {
	if !s.Enabled() {
		return nil, false
	}
	r, ok := s.store.(HistoryReporter)
	return r, ok
}

func (s *HistoryService) addTransaction(ctx context.Context, identity, txType string, amount int64, meta map[string]interface{}) {
	if !s.Enabled() {
		return
	}
	tx := &domain.Transaction{Identity: identity, Type: txType, Amount: amount, Meta: meta}
	if err := s.store.AddTransaction(ctx, tx); err != nil {
		logger.Error("failed to journal transaction", "error", err, "identity", identity, "type", txType)
	}
}
