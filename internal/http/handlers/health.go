package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"arebasic/internal/http/middleware"
	"arebasic/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// identity used for ledger reachability probes
const probeIdentity = "healthcheck"

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        *pgxpool.Pool // nil when history is disabled
	gateway   ledger.Gateway
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *pgxpool.Pool, gateway ledger.Gateway, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		gateway:   gateway,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness returns simple alive status (for k8s liveness probe)
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness returns detailed health status (for k8s readiness probe)
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	// Database check
	switch {
	case h.db == nil:
		checks["database"] = "disabled"
	case h.db.Ping(ctx) != nil:
		checks["database"] = "unhealthy"
		allHealthy = false
	default:
		checks["database"] = "healthy"
	}

	// Ledger check
	if _, err := h.gateway.GetBetStatus(ctx, probeIdentity); err != nil {
		checks["ledger"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["ledger"] = "healthy"
	}

	// Redis is optional: an outage only disables rate limiting
	if !middleware.RedisEnabled() {
		checks["redis"] = "disabled"
	} else if err := middleware.PingRedis(ctx); err != nil {
		checks["redis"] = "degraded: " + err.Error()
	} else {
		checks["redis"] = "healthy"
	}

	// Memory check
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	checks["memory_alloc_mb"] = formatMB(m.Alloc)

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// Health is a combined endpoint for basic health checks
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	// Quick database ping
	if h.db != nil && h.db.Ping(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

func formatMB(bytes uint64) string {
	mb := float64(bytes) / 1024 / 1024
	return fmt.Sprintf("%.2f", mb)
}
