package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grimsurvivors/potdhub/cache"
)

// StatusHandler reports whether the game bridge is alive.
type StatusHandler struct {
	cache cache.Cache
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(c cache.Cache) *StatusHandler {
	return &StatusHandler{cache: c}
}

// ServerStatus handles GET /api/server-status. The bridge refreshes a
// heartbeat key on every call; if the key has expired the game side is
// considered offline.
func (h *StatusHandler) ServerStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	lastSeen, err := h.cache.Get(ctx, HeartbeatKey)
	if err != nil || lastSeen == "" {
		c.JSON(http.StatusOK, gin.H{"online": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": true, "lastSeen": lastSeen})
}
