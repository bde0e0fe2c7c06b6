package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grimsurvivors/potdhub/cache"
	"github.com/grimsurvivors/potdhub/outbox"
	"github.com/grimsurvivors/potdhub/recon"
	"go.uber.org/zap"
)

// HeartbeatKey is the cache key recording when the bridge last called in.
const HeartbeatKey = "bridge:last_seen"

// heartbeatTTL bounds how long a silent bridge still counts as online.
const heartbeatTTL = 2 * time.Minute

// GameHandler handles the bridge-facing endpoints (bearer-key
// authenticated, see middleware.BridgeAuth).
type GameHandler struct {
	engine *recon.Engine
	outbox *outbox.Service
	cache  cache.Cache
	logger *zap.Logger
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(engine *recon.Engine, ob *outbox.Service, c cache.Cache, logger *zap.Logger) *GameHandler {
	return &GameHandler{engine: engine, outbox: ob, cache: c, logger: logger}
}

type addCodeRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Code     string `json:"code"     binding:"required,max=32"`
}

// AddCode handles POST /api/pz/add-code.
func (h *GameHandler) AddCode(c *gin.Context) {
	var req addCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
		return
	}

	if err := h.engine.ApplyAuth(c.Request.Context(), req.Username, req.Code); err != nil {
		h.logger.Error("add code failed", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.touchHeartbeat(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type updateStatsRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	CharName string `json:"charName" binding:"required,max=64"`
	Stats    struct {
		ZombiesKilled int      `json:"zombiesKilled"`
		HoursSurvived float64  `json:"hoursSurvived"`
		Profession    string   `json:"profession"`
		Traits        []string `json:"traits"`
	} `json:"stats"`
	Faction  string `json:"faction"`
	IsLeader bool   `json:"isLeader"`
}

// UpdateStats handles POST /api/pz/update-stats.
func (h *GameHandler) UpdateStats(c *gin.Context) {
	var req updateStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
		return
	}

	stats := recon.Stats{
		ZombiesKilled: req.Stats.ZombiesKilled,
		HoursSurvived: req.Stats.HoursSurvived,
		Profession:    req.Stats.Profession,
		Traits:        req.Stats.Traits,
	}
	err := h.engine.ApplyStats(c.Request.Context(), req.Username, req.CharName, stats, req.Faction, req.IsLeader)
	if err != nil {
		if errors.Is(err, recon.ErrUserNotLinked) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not linked"})
			return
		}
		h.logger.Error("stats update failed", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.touchHeartbeat(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PendingCommands handles GET /api/pz/pending-commands.
func (h *GameHandler) PendingCommands(c *gin.Context) {
	commands, err := h.outbox.FetchPending(c.Request.Context())
	if err != nil {
		h.logger.Error("fetch pending failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch commands"})
		return
	}
	h.touchHeartbeat(c)
	c.JSON(http.StatusOK, commands)
}

type ackRequest struct {
	CommandIDs []int64 `json:"commandIds"`
}

// AckCommands handles POST /api/pz/pending-commands. Best-effort: always
// responds 200 to keep the bridge loop simple; a failed ack just means
// re-delivery.
func (h *GameHandler) AckCommands(c *gin.Context) {
	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	if err := h.outbox.Acknowledge(c.Request.Context(), req.CommandIDs); err != nil {
		h.logger.Error("ack failed", zap.Error(err))
	}
	h.touchHeartbeat(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *GameHandler) touchHeartbeat(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Set(ctx, HeartbeatKey, time.Now().Format(time.RFC3339), heartbeatTTL)
}
