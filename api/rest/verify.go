package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	mw "github.com/grimsurvivors/potdhub/middleware"
	"github.com/grimsurvivors/potdhub/recon"
	"go.uber.org/zap"
)

// VerifyHandler handles the verification code exchange for session users.
type VerifyHandler struct {
	engine *recon.Engine
	logger *zap.Logger
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(engine *recon.Engine, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{engine: engine, logger: logger}
}

type verifyCodeRequest struct {
	Code string `json:"code" binding:"required,max=32"`
}

// VerifyCode handles POST /api/verify-code.
func (h *VerifyHandler) VerifyCode(c *gin.Context) {
	userID := mw.GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code required"})
		return
	}

	username, err := h.engine.ConsumeVerification(c.Request.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, recon.ErrCodeNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		case errors.Is(err, recon.ErrCodeExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "code expired"})
		default:
			h.logger.Error("verification failed", zap.Int64("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "username": username})
}
