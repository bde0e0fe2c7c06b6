package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	mw "github.com/grimsurvivors/potdhub/middleware"
	"github.com/grimsurvivors/potdhub/model"
	"github.com/grimsurvivors/potdhub/recon"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FactionHandler handles faction browsing, applications, and management.
type FactionHandler struct {
	db     *gorm.DB
	engine *recon.Engine
	logger *zap.Logger
}

// NewFactionHandler creates a new FactionHandler.
func NewFactionHandler(db *gorm.DB, engine *recon.Engine, logger *zap.Logger) *FactionHandler {
	return &FactionHandler{db: db, engine: engine, logger: logger}
}

type applyRequest struct {
	FactionID int64  `json:"factionId" binding:"required"`
	Message   string `json:"message"   binding:"max=500"`
}

// Apply handles POST /api/factions/apply.
func (h *FactionHandler) Apply(c *gin.Context) {
	userID := mw.GetUserID(c)

	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
		return
	}

	err := h.engine.ApplyFactionApplication(c.Request.Context(), userID, req.FactionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, recon.ErrAlreadyMember):
			c.JSON(http.StatusBadRequest, gin.H{"error": "already in a faction"})
		case errors.Is(err, recon.ErrApplicationPending):
			c.JSON(http.StatusBadRequest, gin.H{"error": "application already pending"})
		case errors.Is(err, recon.ErrFactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "faction not found"})
		default:
			h.logger.Error("apply failed", zap.Int64("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type manageRequest struct {
	ApplicationID int64  `json:"applicationId" binding:"required"`
	Action        string `json:"action"        binding:"required,oneof=ACCEPT REJECT"`
}

// Manage handles POST /api/factions/manage.
func (h *FactionHandler) Manage(c *gin.Context) {
	userID := mw.GetUserID(c)

	var req manageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
		return
	}

	err := h.engine.ApplyFactionAction(c.Request.Context(), req.ApplicationID, req.Action, userID)
	if err != nil {
		switch {
		case errors.Is(err, recon.ErrApplicationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
		case errors.Is(err, recon.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		case errors.Is(err, recon.ErrInsufficientPermissions):
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		case errors.Is(err, recon.ErrInvalidAction):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action"})
		default:
			h.logger.Error("manage failed", zap.Int64("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	message := "Application rejected."
	if req.Action == "ACCEPT" {
		message = "Member accepted and synced to game."
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

// List handles GET /api/factions.
func (h *FactionHandler) List(c *gin.Context) {
	var factions []model.Faction
	if err := h.db.Order("name ASC").Find(&factions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type countRow struct {
		FactionID int64
		Count     int64
	}
	var counts []countRow
	h.db.Model(&model.FactionMember{}).
		Select("faction_id, count(*) as count").
		Group("faction_id").
		Scan(&counts)
	countByID := make(map[int64]int64, len(counts))
	for _, row := range counts {
		countByID[row.FactionID] = row.Count
	}

	out := make([]gin.H, 0, len(factions))
	for _, f := range factions {
		out = append(out, gin.H{
			"id":           f.ID,
			"name":         f.Name,
			"description":  f.Description,
			"owner_id":     f.OwnerID,
			"member_count": countByID[f.ID],
			"created_at":   f.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"factions": out})
}

// Detail handles GET /api/factions/:id. Pending applications are included
// only for members who can manage them.
func (h *FactionHandler) Detail(c *gin.Context) {
	userID := mw.GetUserID(c)
	factionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var faction model.Faction
	if err := h.db.First(&faction, factionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "faction not found"})
		return
	}

	var members []model.FactionMember
	h.db.Where("faction_id = ?", factionID).Order("joined_at ASC").Find(&members)

	resp := gin.H{"faction": faction, "members": members}

	var requester model.FactionMember
	if err := h.db.Where("user_id = ?", userID).First(&requester).Error; err == nil &&
		requester.FactionID == factionID && requester.Role != model.RoleMember {
		var applications []model.FactionApplication
		h.db.Where("faction_id = ? AND status = ?", factionID, model.ApplicationPending).
			Order("created_at ASC").Find(&applications)
		resp["applications"] = applications
	}

	c.JSON(http.StatusOK, resp)
}
