package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/cache"
	"github.com/javl1n/siblo-server/game/reward"
	"github.com/javl1n/siblo-server/model"
)

// RankingHandler handles leaderboard REST endpoints.
type RankingHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(db *gorm.DB, c cache.Cache, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{db: db, cache: c, logger: logger}
}

const rankingTop = 100

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    int64  `json:"player_id"`
	TrainerName string `json:"trainer_name"`
	Level       int    `json:"level"`
	Exp         int64  `json:"exp"`
}

// TopExp returns the top players sorted by experience.
// GET /api/ranking/exp?limit=20
func (h *RankingHandler) TopExp(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	// Try the cached sorted set first.
	ctx := c.Request.Context()
	members, err := h.cache.ZRevRange(ctx, reward.RankingKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]RankEntry, 0, len(members))
		for i, m := range members {
			playerID, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			score, _ := h.cache.ZScore(ctx, reward.RankingKey, m)
			entries = append(entries, RankEntry{
				Rank:     i + 1,
				PlayerID: playerID,
				Exp:      int64(score),
			})
		}
		h.enrichNames(entries)
		c.JSON(http.StatusOK, gin.H{"ranking": entries})
		return
	}

	// Fall back to the player table.
	var players []model.PlayerProfile
	h.db.Select("id, trainer_name, level, experience_points").
		Order("experience_points DESC").
		Limit(limit).
		Find(&players)

	entries := make([]RankEntry, len(players))
	for i, p := range players {
		entries[i] = RankEntry{
			Rank:        i + 1,
			PlayerID:    p.ID,
			TrainerName: p.TrainerName,
			Level:       p.Level,
			Exp:         p.ExperiencePoints,
		}
		// Refresh the cache entry while we are here.
		_ = h.cache.ZAdd(ctx, reward.RankingKey, float64(p.ExperiencePoints), strconv.FormatInt(p.ID, 10))
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// enrichNames fills trainer names and levels for cache-sourced entries.
func (h *RankingHandler) enrichNames(entries []RankEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.PlayerID
	}
	var players []model.PlayerProfile
	if err := h.db.Select("id, trainer_name, level").Where("id IN ?", ids).Find(&players).Error; err != nil {
		h.logger.Warn("ranking name enrichment failed", zap.Error(err))
		return
	}
	byID := make(map[int64]model.PlayerProfile, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	for i := range entries {
		if p, ok := byID[entries[i].PlayerID]; ok {
			entries[i].TrainerName = p.TrainerName
			entries[i].Level = p.Level
		}
	}
}
