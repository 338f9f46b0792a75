package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/game/battle"
)

// BattleHandler handles the battle endpoints.
type BattleHandler struct {
	db  *gorm.DB
	svc *battle.Service
}

func NewBattleHandler(db *gorm.DB, svc *battle.Service) *BattleHandler {
	return &BattleHandler{db: db, svc: svc}
}

type startBattleRequest struct {
	SiblonID   int64  `json:"siblon_id" binding:"required"`
	BattleType string `json:"battle_type" binding:"required"`
	OpponentID *int64 `json:"opponent_id"`
}

// Start handles POST /api/battles.
func (h *BattleHandler) Start(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	var req startBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.Start(c.Request.Context(), player.ID, req.SiblonID, req.BattleType, req.OpponentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// List handles GET /api/battles.
func (h *BattleHandler) List(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	battles, err := h.svc.ListForPlayer(c.Request.Context(), player.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": battles})
}

// Show handles GET /api/battles/:battle_id.
func (h *BattleHandler) Show(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	view, err := h.svc.Show(c.Request.Context(), c.Param("battle_id"), player.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Attack handles POST /api/battles/:battle_id/attack.
func (h *BattleHandler) Attack(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	view, err := h.svc.Attack(c.Request.Context(), c.Param("battle_id"), player.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Forfeit handles POST /api/battles/:battle_id/forfeit.
func (h *BattleHandler) Forfeit(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	view, err := h.svc.Forfeit(c.Request.Context(), c.Param("battle_id"), player.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
