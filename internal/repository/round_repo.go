package repository

import (
	"context"
	"encoding/json"
	"time"

	"arebasic/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoundRepository struct {
	db *pgxpool.Pool
}

func NewRoundRepository(db *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{db: db}
}

// Create сохраняет завершённый раунд в историю
func (r *RoundRepository) Create(ctx context.Context, rd *domain.Round) error {
	diagJSON, err := json.Marshal(rd.Diagnostics)
	if err != nil {
		diagJSON = []byte("{}")
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO rounds
			(round_id, identity, prompt_id, prompt_text, answer, outcome, stake, win_amount, streak, score, used_fallback, diagnostics)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (round_id) DO NOTHING
		 RETURNING id, created_at`,
		rd.RoundID,
		rd.Identity,
		rd.PromptID,
		rd.PromptText,
		rd.Answer,
		rd.Outcome,
		rd.Stake,
		rd.WinAmount,
		rd.Streak,
		rd.Score,
		rd.UsedFallback,
		diagJSON,
	).Scan(&rd.ID, &rd.CreatedAt)
}

// GetByIdentity возвращает историю раундов игрока
func (r *RoundRepository) GetByIdentity(ctx context.Context, identity string, limit int) ([]*domain.Round, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, round_id, identity, prompt_id, prompt_text, answer, outcome,
				stake, win_amount, streak, score, used_fallback, diagnostics, created_at
		 FROM rounds
		 WHERE identity = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		identity, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetStats возвращает статистику игрока за период
func (r *RoundRepository) GetStats(ctx context.Context, identity string, since time.Time) (*domain.PlayerStats, error) {
	stats := &domain.PlayerStats{Identity: identity, Since: since}

	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'win'),
			COUNT(*) FILTER (WHERE outcome = 'timeout'),
			COALESCE(SUM(win_amount), 0),
			COALESCE(SUM(stake), 0),
			COUNT(*) FILTER (WHERE used_fallback),
			COALESCE(AVG(score), 0)
		 FROM rounds
		 WHERE identity = $1 AND created_at >= $2`,
		identity, since,
	).Scan(&stats.Rounds, &stats.Wins, &stats.Timeouts, &stats.TotalWon, &stats.TotalStake, &stats.Fallbacks, &stats.AvgScore)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *RoundRepository) scanRows(rows pgx.Rows) ([]*domain.Round, error) {
	var result []*domain.Round

	for rows.Next() {
		var (
			rd       domain.Round
			diagJSON []byte
		)
		if err := rows.Scan(
			&rd.ID, &rd.RoundID, &rd.Identity, &rd.PromptID, &rd.PromptText, &rd.Answer, &rd.Outcome,
			&rd.Stake, &rd.WinAmount, &rd.Streak, &rd.Score, &rd.UsedFallback, &diagJSON, &rd.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(diagJSON) > 0 {
			_ = json.Unmarshal(diagJSON, &rd.Diagnostics)
		}
		result = append(result, &rd)
	}

	return result, rows.Err()
}
