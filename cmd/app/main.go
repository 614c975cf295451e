package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arebasic/internal/config"
	"arebasic/internal/db"
	"arebasic/internal/evaluator"
	"arebasic/internal/game"
	httpServer "arebasic/internal/http"
	"arebasic/internal/http/middleware"
	"arebasic/internal/ledger"
	"arebasic/internal/logger"
	"arebasic/internal/repository"
	"arebasic/internal/service"
	"arebasic/internal/ws"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT") == "json")
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	dbPool := db.Connect(cfg.DatabaseURL)
	if dbPool != nil {
		defer dbPool.Close()
	}

	gateway, closeLedger, err := ledger.Open(cfg.LedgerOptions())
	if err != nil {
		logger.Fatal("failed to open ledger", "error", err)
	}
	defer closeLedger()
	logger.Info("ledger ready", "mode", cfg.LedgerMode)

	if cfg.RedisAddr != "" {
		middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer middleware.CloseRedis()
	}

	var history *service.HistoryService
	if dbPool != nil {
		history = service.NewHistoryService(repository.NewHistoryStore(dbPool))
	} else {
		history = service.NewHistoryService(nil)
	}

	hub := ws.NewHub()
	sessions := service.NewSessionManager(service.SessionDeps{
		Gateway:   gateway,
		Policy:    service.NewReconciliationPolicy(gateway, cfg.ReconcileAttempts, cfg.ReconcileDelay),
		Evaluator: evaluator.NewClient(cfg.EvaluatorURL, cfg.CallTimeout),
		Prompts:   game.NewPromptBank(game.DefaultPrompts),
		Notifier:  hub,
		History:   history,
	}, service.SessionConfig{
		StakeCost:     cfg.StakeCost,
		RoundDuration: cfg.RoundDuration,
		CallTimeout:   cfg.CallTimeout,
	})

	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "*" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, httpServer.Deps{
		DB:       dbPool,
		Sessions: sessions,
		History:  history,
		Gateway:  gateway,
		Hub:      hub,
		Config:   cfg,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	sessions.Close()
	hub.Close()

	logger.Info("server exited")
}
