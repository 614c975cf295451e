package repository

import (
	"context"
	"encoding/json"
	"time"

	"arebasic/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// GetByIdentity returns recent journal entries for a player
func (r *TransactionRepository) GetByIdentity(ctx context.Context, identity string, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, identity, type, amount, meta, created_at
		 FROM transactions
		 WHERE identity = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		identity, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// Create inserts a new transaction
func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	metaJSON, err := json.Marshal(tx.Meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO transactions (identity, type, amount, meta)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		tx.Identity, tx.Type, tx.Amount, metaJSON,
	).Scan(&tx.ID, &tx.CreatedAt)
}

// SumByType returns the total journaled amount of one type (stake/payout)
func (r *TransactionRepository) SumByType(ctx context.Context, identity, txType string) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE identity = $1 AND type = $2`,
		identity, txType,
	).Scan(&total)
	return total, err
}

// Helper to scan rows into Transaction slice
func (r *TransactionRepository) scanRows(rows pgx.Rows) ([]*domain.Transaction, error) {
	var result []*domain.Transaction

	for rows.Next() {
		var (
			tx        domain.Transaction
			metaJSON  []byte
			createdAt time.Time
		)

		if err := rows.Scan(&tx.ID, &tx.Identity, &tx.Type, &tx.Amount, &metaJSON, &createdAt); err != nil {
			return nil, err
		}

		tx.CreatedAt = createdAt
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &tx.Meta)
		}

		result = append(result, &tx)
	}

	return result, rows.Err()
}
