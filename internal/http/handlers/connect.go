package handlers

import (
	"net/http"
	"regexp"

	"arebasic/internal/logger"
	"arebasic/internal/service"

	"github.com/gin-gonic/gin"
)

// wallet addresses and similar opaque ids
var identityPattern = regexp.MustCompile(`^[A-Za-z0-9:_.\-]{3,128}$`)

type ConnectRequest struct {
	Identity string `json:"identity"`
}

// Connect binds the caller to an identity and returns a token plus the session state
func (h *Handler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if !identityPattern.MatchString(req.Identity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity"})
		return
	}

	session, err := h.Sessions.Connect(c.Request.Context(), req.Identity)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := service.GenerateJWT(req.Identity)
	if err != nil {
		logger.Error("token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	snap := session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"identity":   snap.Identity,
		"balance":    snap.Balance,
		"streak":     snap.Streak,
		"state":      snap.State,
		"stake_cost": snap.StakeCost,
	})
}
