package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"arebasic/internal/domain"
	"arebasic/internal/game"
	"arebasic/internal/http/middleware"
	"arebasic/internal/service"

	"github.com/gin-gonic/gin"
)

type DraftRequest struct {
	Text string `json:"text"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

// StartRound places the stake and returns the prompt with its countdown.
// Ledger calls must not be cut short by the client going away.
func (h *Handler) StartRound(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	start, err := s.StartRound(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, start)
}

func (h *Handler) Draft(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if err := s.UpdateDraft(req.Text); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	result, err := s.SubmitAnswer(context.WithoutCancel(c.Request.Context()), req.Answer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Acknowledge(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	state, err := s.Acknowledge()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "balance": s.Balance()})
}

// Reset is the manual recovery path: abandon the round and clear the ledger
func (h *Handler) Reset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	report, err := s.ForceReset(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "report": report})
		return
	}
	snap := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{"report": report, "state": snap.State, "balance": snap.Balance})
}

func (h *Handler) Balance(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": s.Balance()})
}

func (h *Handler) Session(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"session":      snap,
		"seconds_left": snap.SecondsLeft(time.Now()),
	})
}

func (h *Handler) RoundHistory(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	rounds, err := h.History.Recent(c.Request.Context(), identity, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if rounds == nil {
		rounds = []*domain.Round{}
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds, "enabled": h.History.Enabled()})
}

// LedgerStatus shows the raw bet status and what a reset would do about it
func (h *Handler) LedgerStatus(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, err := h.Gateway.GetBetStatus(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"blocked":   status.PendingBetBlocksNewRound(),
		"diagnosis": service.Diagnose(status),
	})
}

// GameInfo describes the rules
func (h *Handler) GameInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stake_cost":    h.Config.StakeCost,
		"round_seconds": h.Config.RoundSeconds,
		"win_threshold": domain.WinThreshold,
		"payouts":       game.PayoutTable(),
	})
}

// Leaderboard returns players ranked by their current streak
func (h *Handler) Leaderboard(c *gin.Context) {
	top, err := h.History.Leaderboard(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}
	if top == nil {
		top = []*domain.Player{}
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": top})
}

// Stats aggregates the caller's rounds over the last ?days= (default 30)
func (h *Handler) Stats(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	days := 30
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	stats, err := h.History.Stats(c.Request.Context(), identity, time.Now().AddDate(0, 0, -days))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Transactions(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	txs, err := h.History.Journal(c.Request.Context(), identity, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
