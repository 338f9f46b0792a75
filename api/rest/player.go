package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	mw "github.com/javl1n/siblo-server/middleware"
	"github.com/javl1n/siblo-server/model"
)

// PlayerHandler handles the player profile and siblon collection endpoints.
type PlayerHandler struct {
	db *gorm.DB
}

func NewPlayerHandler(db *gorm.DB) *PlayerHandler {
	return &PlayerHandler{db: db}
}

// playerFor resolves the authenticated user's player profile. Writes the
// error response and returns false when there is none.
func playerFor(c *gin.Context, db *gorm.DB) (*model.PlayerProfile, bool) {
	userID := mw.GetUserID(c)
	var player model.PlayerProfile
	err := db.Where("user_id = ?", userID).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no player profile"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	return &player, true
}

// Profile handles GET /api/player/profile.
func (h *PlayerHandler) Profile(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": player})
}

// siblonView pairs a siblon with its species catalog entry.
type siblonView struct {
	model.Siblon
	Species model.SiblonSpecies `json:"species"`
}

// Siblons handles GET /api/player/siblons.
func (h *PlayerHandler) Siblons(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	var siblons []model.Siblon
	if err := h.db.Where("player_profile_id = ?", player.ID).Order("obtained_at ASC").Find(&siblons).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	views := make([]siblonView, 0, len(siblons))
	for _, s := range siblons {
		var species model.SiblonSpecies
		if err := h.db.First(&species, s.SpeciesID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views = append(views, siblonView{Siblon: s, Species: species})
	}
	c.JSON(http.StatusOK, gin.H{"siblons": views})
}

type updateSiblonRequest struct {
	Nickname  *string `json:"nickname" binding:"omitempty,max=32"`
	IsInParty *bool   `json:"is_in_party"`
}

// UpdateSiblon handles PATCH /api/player/siblons/:id — nickname and party
// membership only; stats are owned by the progression ledger.
func (h *PlayerHandler) UpdateSiblon(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	siblonID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad siblon id"})
		return
	}
	var req updateSiblonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var siblon model.Siblon
	if err := h.db.First(&siblon, siblonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "siblon not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if siblon.PlayerProfileID != player.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your siblon"})
		return
	}

	updates := map[string]interface{}{}
	if req.Nickname != nil {
		updates["nickname"] = req.Nickname
		siblon.Nickname = req.Nickname
	}
	if req.IsInParty != nil {
		updates["is_in_party"] = *req.IsInParty
		siblon.IsInParty = *req.IsInParty
	}
	if len(updates) > 0 {
		if err := h.db.Model(&siblon).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"siblon": siblon})
}

// SiblonHistory handles GET /api/player/siblons/:id/history — the level-up
// and evolution records for one owned siblon.
func (h *PlayerHandler) SiblonHistory(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	siblonID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad siblon id"})
		return
	}
	var siblon model.Siblon
	if err := h.db.First(&siblon, siblonID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "siblon not found"})
		return
	}
	if siblon.PlayerProfileID != player.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your siblon"})
		return
	}

	var levelUps []model.SiblonLevelUp
	var evolutions []model.SiblonEvolution
	if err := h.db.Where("siblon_id = ?", siblonID).Order("created_at ASC").Find(&levelUps).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if err := h.db.Where("siblon_id = ?", siblonID).Order("created_at ASC").Find(&evolutions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"level_ups":  levelUps,
		"evolutions": evolutions,
	})
}

// Activity handles GET /api/player/activity?days=7.
func (h *PlayerHandler) Activity(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	days := 7
	if d, err := strconv.Atoi(c.Query("days")); err == nil && d > 0 && d <= 90 {
		days = d
	}
	var activity []model.DailyActivity
	if err := h.db.Where("player_profile_id = ?", player.ID).
		Order("activity_date DESC").Limit(days).
		Find(&activity).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

// Species handles GET /api/species — the read-only siblon catalog.
func (h *PlayerHandler) Species(c *gin.Context) {
	var species []model.SiblonSpecies
	if err := h.db.Order("evolution_stage ASC, id ASC").Find(&species).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"species": species})
}
