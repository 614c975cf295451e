package http

import (
	"time"

	"arebasic/internal/config"
	"arebasic/internal/http/handlers"
	"arebasic/internal/http/middleware"
	"arebasic/internal/ledger"
	"arebasic/internal/service"
	"arebasic/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the HTTP surface needs
type Deps struct {
	DB       *pgxpool.Pool // optional
	Sessions *service.SessionManager
	History  *service.HistoryService
	Gateway  ledger.Gateway
	Hub      *ws.Hub
	Config   *config.Config
	Version  string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	h := handlers.NewHandler(d.Sessions, d.History, d.Gateway, handlers.HandlerConfig{
		StakeCost:    cfg.StakeCost,
		RoundSeconds: int(cfg.RoundDuration / time.Second),
	})
	healthHandler := handlers.NewHealthHandler(d.DB, d.Gateway, d.Version)

	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiRateWindow := time.Duration(cfg.APIRateWindowSeconds) * time.Second
	gameRateWindow := time.Duration(cfg.GameRateWindow) * time.Second

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.APIRateLimit, apiRateWindow))
	registerAPIRoutes(v1, h, cfg.GameRateLimit, gameRateWindow)

	// Session event push
	r.GET("/ws", ws.HandleWS(d.Hub, d.Sessions))
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, gameRateLimit int, gameRateWindow time.Duration) {
	api.POST("/connect", h.Connect)
	api.GET("/game/info", h.GameInfo)
	api.GET("/leaderboard", h.Leaderboard)

	// Game rate limiter middleware (per identity, not per IP)
	gameRL := middleware.GameRateLimit(gameRateLimit, gameRateWindow)
	resetRL := middleware.GameRateLimitByAction("reset", max(1, gameRateLimit/5), gameRateWindow)

	auth := api.Group("")
	auth.Use(middleware.JWT())
	{
		auth.POST("/round/start", gameRL, h.StartRound)
		auth.POST("/round/draft", h.Draft)
		auth.POST("/round/answer", gameRL, h.SubmitAnswer)
		auth.POST("/round/ack", h.Acknowledge)
		auth.POST("/session/reset", resetRL, h.Reset)

		auth.GET("/balance", h.Balance)
		auth.GET("/session", h.Session)
		auth.GET("/history", h.RoundHistory)
		auth.GET("/stats", h.Stats)
		auth.GET("/transactions", h.Transactions)
		auth.GET("/ledger/status", h.LedgerStatus)
	}
}
