package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/cache"
	"github.com/javl1n/siblo-server/config"
	"github.com/javl1n/siblo-server/game/reward"
	"github.com/javl1n/siblo-server/model"
)

const (
	taskRankingRefresh = "ranking_refresh"
	taskBattleSweep    = "battle_sweep"
)

// RegisterGameTasks wires the periodic game maintenance work: rebuilding the
// XP leaderboard and abandoning battles idle past the configured timeout.
func RegisterGameTasks(s *Scheduler, db *gorm.DB, c cache.Cache, cfg config.GameConfig, logger *zap.Logger) {
	s.AddTicker(taskRankingRefresh, cfg.RankingRefresh, func() {
		RefreshRanking(db, c, logger)
	})
	s.AddTicker(taskBattleSweep, cfg.BattleIdleTimeout/2, func() {
		SweepStaleBattles(db, cfg.BattleIdleTimeout, logger)
	})
	// Build the leaderboard shortly after boot instead of waiting a full
	// refresh interval.
	s.AddDelay(taskRankingRefresh+"_initial", 5*time.Second, func() {
		RefreshRanking(db, c, logger)
	})
}

// RefreshRanking rebuilds the XP leaderboard sorted set from the player table.
func RefreshRanking(db *gorm.DB, c cache.Cache, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var players []model.PlayerProfile
	if err := db.Find(&players).Error; err != nil {
		logger.Error("ranking refresh: load players failed", zap.Error(err))
		return
	}
	for _, p := range players {
		if err := c.ZAdd(ctx, reward.RankingKey, float64(p.ExperiencePoints), fmt.Sprintf("%d", p.ID)); err != nil {
			logger.Warn("ranking refresh: zadd failed",
				zap.Int64("player_id", p.ID), zap.Error(err))
			return
		}
	}
	logger.Debug("ranking refreshed", zap.Int("players", len(players)))
}

// SweepStaleBattles marks active battles with no activity inside the timeout
// window as abandoned.
func SweepStaleBattles(db *gorm.DB, timeout time.Duration, logger *zap.Logger) {
	cutoff := time.Now().Add(-timeout)
	now := time.Now()
	res := db.Model(&model.BattleState{}).
		Where("status = ? AND updated_at < ?", model.BattleStatusActive, cutoff).
		Updates(map[string]interface{}{
			"status":       model.BattleStatusAbandoned,
			"completed_at": now,
		})
	if res.Error != nil {
		logger.Error("battle sweep failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		logger.Info("stale battles abandoned", zap.Int64("count", res.RowsAffected))
	}
}
