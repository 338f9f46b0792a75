// Package reward computes and distributes XP/coin rewards for passing quiz
// attempts.
package reward

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javl1n/siblo-server/cache"
	"github.com/javl1n/siblo-server/game/progression"
	"github.com/javl1n/siblo-server/model"
)

// Amounts is a computed XP/coin pair before persistence.
type Amounts struct {
	ExperiencePoints int `json:"experience_points"`
	Coins            int `json:"coins"`
}

// Base reward tables per difficulty.
var baseRewards = map[string]Amounts{
	model.DifficultyEasy:   {ExperiencePoints: 50, Coins: 25},
	model.DifficultyMedium: {ExperiencePoints: 100, Coins: 50},
	model.DifficultyHard:   {ExperiencePoints: 200, Coins: 100},
}

var defaultReward = Amounts{ExperiencePoints: 75, Coins: 40}

const perfectBonus = 1.5

// Calculate scales the difficulty's base reward by the score percentage and
// applies the perfect-score bonus on top. XP and coins round independently,
// half away from zero.
func Calculate(difficulty string, percentage float64) Amounts {
	base, ok := baseRewards[difficulty]
	if !ok {
		base = defaultReward
	}
	xp := float64(base.ExperiencePoints) * percentage / 100
	coins := float64(base.Coins) * percentage / 100
	if percentage >= 100 {
		xp *= perfectBonus
		coins *= perfectBonus
	}
	return Amounts{
		ExperiencePoints: int(math.Round(xp)),
		Coins:            int(math.Round(coins)),
	}
}

// RankingKey is the sorted-set cache key holding player XP totals.
const RankingKey = "ranking:player:exp"

// Distributor persists rewards and fans the grant out to the player ledger,
// party siblons, the daily activity counters and the ranking cache.
type Distributor struct {
	ledger *progression.Ledger
	cache  cache.Cache
	logger *zap.Logger
}

func NewDistributor(ledger *progression.Ledger, c cache.Cache, logger *zap.Logger) *Distributor {
	return &Distributor{ledger: ledger, cache: c, logger: logger}
}

// Grant applies the computed reward for one passing attempt inside tx.
// It creates the single QuizReward row (the unique index on quiz_attempt_id
// rejects a second grant), credits the player, and grants the same XP to
// every party siblon linked to the attempt. Daily activity counters are the
// caller's job: they move on every completed attempt, passing or not.
func (d *Distributor) Grant(tx *gorm.DB, attempt *model.QuizAttempt, player *model.PlayerProfile, amounts Amounts) (*model.QuizReward, error) {
	now := time.Now()
	rewardRow := &model.QuizReward{
		QuizAttemptID:    attempt.ID,
		PlayerProfileID:  player.ID,
		ExperiencePoints: amounts.ExperiencePoints,
		Coins:            amounts.Coins,
		Claimed:          true,
		ClaimedAt:        &now,
	}
	if err := tx.Create(rewardRow).Error; err != nil {
		return nil, fmt.Errorf("create reward: %w", err)
	}

	if err := d.ledger.AddPlayerExperience(tx, player, int64(amounts.ExperiencePoints)); err != nil {
		return nil, err
	}
	if err := d.ledger.AddPlayerCoins(tx, player, int64(amounts.Coins)); err != nil {
		return nil, err
	}

	var party []model.Siblon
	if err := tx.Where("player_profile_id = ? AND is_in_party = ?", player.ID, true).Find(&party).Error; err != nil {
		return nil, err
	}
	for i := range party {
		if _, err := d.ledger.AddSiblonExperience(tx, &party[i], int64(amounts.ExperiencePoints), &attempt.ID); err != nil {
			return nil, err
		}
	}
	return rewardRow, nil
}

// RefreshRanking pushes the player's XP total into the ranking sorted set.
// Best effort: a cache outage must not fail the quiz submission, so callers
// invoke this after the grant transaction commits.
func (d *Distributor) RefreshRanking(ctx context.Context, player *model.PlayerProfile) {
	if err := d.cache.ZAdd(ctx, RankingKey, float64(player.ExperiencePoints), fmt.Sprintf("%d", player.ID)); err != nil {
		d.logger.Warn("ranking update failed",
			zap.Int64("player_id", player.ID),
			zap.Error(err))
	}
}

// Claim marks a reward claimed. Rewards are claimed eagerly at grant time,
// so a repeat call is a no-op returning the stored row.
func (d *Distributor) Claim(tx *gorm.DB, reward *model.QuizReward) error {
	if reward.Claimed {
		return nil
	}
	now := time.Now()
	reward.Claimed = true
	reward.ClaimedAt = &now
	return tx.Model(reward).Updates(map[string]interface{}{
		"claimed":    true,
		"claimed_at": now,
	}).Error
}

// BumpDailyActivity counts one completed quiz for the day and accumulates
// whatever XP the attempt earned (zero for a failing one).
func (d *Distributor) BumpDailyActivity(tx *gorm.DB, playerID int64, xp int, now time.Time) error {
	day := now.Format("2006-01-02")
	activity := &model.DailyActivity{
		PlayerProfileID:  playerID,
		ActivityDate:     day,
		QuizzesCompleted: 1,
		ExperienceGained: xp,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "player_profile_id"}, {Name: "activity_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quizzes_completed": gorm.Expr("quizzes_completed + 1"),
			"experience_gained": gorm.Expr("experience_gained + ?", xp),
		}),
	}).Create(activity).Error
}
