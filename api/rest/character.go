package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	mw "github.com/grimsurvivors/potdhub/middleware"
	"github.com/grimsurvivors/potdhub/model"
	"gorm.io/gorm"
)

// CharacterHandler serves character views for session users.
type CharacterHandler struct {
	db *gorm.DB
}

// NewCharacterHandler creates a new CharacterHandler.
func NewCharacterHandler(db *gorm.DB) *CharacterHandler {
	return &CharacterHandler{db: db}
}

// ActiveCharacter handles GET /api/user/active-character. It returns the
// alive character if one exists, otherwise the most recently updated dead
// one with a DEAD marker, otherwise a null character.
func (h *CharacterHandler) ActiveCharacter(c *gin.Context) {
	userID := mw.GetUserID(c)

	var char model.Character
	err := h.db.Where("user_id = ? AND is_alive = ?", userID, true).
		Order("updated_at DESC").First(&char).Error
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"character": char, "status": "ALIVE"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	err = h.db.Where("user_id = ?", userID).
		Order("updated_at DESC").First(&char).Error
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"character": char, "status": "DEAD"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"character": nil, "status": "NONE"})
}

// History handles GET /api/user/characters: every character the user has
// played, newest first.
func (h *CharacterHandler) History(c *gin.Context) {
	userID := mw.GetUserID(c)

	var chars []model.Character
	if err := h.db.Where("user_id = ?", userID).
		Order("born_at DESC").Find(&chars).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": chars})
}
