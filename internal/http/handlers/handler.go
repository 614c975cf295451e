package handlers

import (
	"errors"
	"net/http"

	"arebasic/internal/http/middleware"
	"arebasic/internal/ledger"
	"arebasic/internal/service"

	"github.com/gin-gonic/gin"
)

// HandlerConfig holds the game settings shown by the info endpoint
type HandlerConfig struct {
	StakeCost    int64
	RoundSeconds int
}

type Handler struct {
	Sessions *service.SessionManager
	History  *service.HistoryService
	Gateway  ledger.Gateway
	Config   HandlerConfig
}

func NewHandler(sessions *service.SessionManager, history *service.HistoryService, gateway ledger.Gateway, cfg HandlerConfig) *Handler {
	return &Handler{
		Sessions: sessions,
		History:  history,
		Gateway:  gateway,
		Config:   cfg,
	}
}

// session resolves the caller's session, reconnecting it after a restart
func (h *Handler) session(c *gin.Context) (*service.Session, bool) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	s, err := h.Sessions.Connect(c.Request.Context(), identity)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// statusFor maps session errors onto HTTP statuses
func statusFor(err error) int {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrEmptyAnswer):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrInvalidStateTransition),
		errors.Is(err, service.ErrRoundAbandoned),
		errors.Is(err, service.ErrSessionTerminated):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnknownSession):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAnswerRejected):
		status = http.StatusBadGateway
	case errors.Is(err, service.ErrLedgerUnreachable),
		errors.Is(err, service.ErrCannotClear):
		status = http.StatusServiceUnavailable
	}
	return status
}
