package db

import (
	"context"
	"time"

	"arebasic/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens the history pool. An empty dsn means history is disabled.
func Connect(dsn string) *pgxpool.Pool {
	if dsn == "" {
		logger.Warn("DATABASE_URL is not set, round history disabled")
		return nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Fatal("invalid DATABASE_URL", "error", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	logger.Info("database connected")
	return db
}
