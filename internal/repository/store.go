package repository

import (
	"context"
	"errors"
	"time"

	"arebasic/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryStore bundles the repositories behind the session history recorder
type HistoryStore struct {
	Players      *PlayerRepository
	Rounds       *RoundRepository
	Transactions *TransactionRepository
}

func NewHistoryStore(db *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{
		Players:      NewPlayerRepository(db),
		Rounds:       NewRoundRepository(db),
		Transactions: NewTransactionRepository(db),
	}
}

// SaveRound ignores duplicates of an already stored round
func (s *HistoryStore) SaveRound(ctx context.Context, rd *domain.Round) error {
	err := s.Rounds.Create(ctx, rd)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (s *HistoryStore) ListRounds(ctx context.Context, identity string, limit int) ([]*domain.Round, error) {
	return s.Rounds.GetByIdentity(ctx, identity, limit)
}

func (s *HistoryStore) GetPlayer(ctx context.Context, identity string) (*domain.Player, error) {
	return s.Players.GetByIdentity(ctx, identity)
}

func (s *HistoryStore) SavePlayer(ctx context.Context, p *domain.Player) error {
	return s.Players.Upsert(ctx, p)
}

func (s *HistoryStore) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	return s.Transactions.Create(ctx, tx)
}

func (s *HistoryStore) TopPlayers(ctx context.Context, limit int) ([]*domain.Player, error) {
	return s.Players.TopByStreak(ctx, limit)
}

func (s *HistoryStore) Stats(ctx context.Context, identity string, since time.Time) (*domain.PlayerStats, error) {
	stats, err := s.Rounds.GetStats(ctx, identity, since)
	if err != nil {
		return nil, err
	}
	stats.PaidOut, err = s.Transactions.SumByType(ctx, identity, domain.TxTypePayout)
	return stats, err
}

func (s *HistoryStore) ListTransactions(ctx context.Context, identity string, limit int) ([]*domain.Transaction, error) {
	return s.Transactions.GetByIdentity(ctx, identity, limit)
}
