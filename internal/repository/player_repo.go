package repository

import (
	"context"
	"errors"

	"arebasic/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlayerRepository struct {
	db *pgxpool.Pool
}

func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// GetByIdentity возвращает снимок игрока, nil если игрок ещё не играл
func (r *PlayerRepository) GetByIdentity(ctx context.Context, identity string) (*domain.Player, error) {
	var p domain.Player
	err := r.db.QueryRow(ctx,
		`SELECT identity, balance, streak, updated_at
		 FROM players
		 WHERE identity = $1`,
		identity,
	).Scan(&p.Identity, &p.Balance, &p.Streak, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert сохраняет баланс и серию побед
func (r *PlayerRepository) Upsert(ctx context.Context, p *domain.Player) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO players (identity, balance, streak)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (identity) DO UPDATE
		 SET balance = EXCLUDED.balance, streak = EXCLUDED.streak, updated_at = now()
		 RETURNING updated_at`,
		p.Identity, p.Balance, p.Streak,
	).Scan(&p.UpdatedAt)
}

// TopByStreak returns the players with the best current streak
func (r *PlayerRepository) TopByStreak(ctx context.Context, limit int) ([]*domain.Player, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT identity, balance, streak, updated_at
		 FROM players
		 ORDER BY streak DESC, balance DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.Identity, &p.Balance, &p.Streak, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}
