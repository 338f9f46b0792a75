package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/javl1n/siblo-server/game/reward"
	"github.com/javl1n/siblo-server/model"
	"github.com/javl1n/siblo-server/testutil"
)

func TestRefreshRanking_BuildsLeaderboard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)

	for i, xp := range []int64{300, 100, 200} {
		user := &model.User{Username: string(rune('a' + i)), Email: string(rune('a'+i)) + "@example.com", PasswordHash: "x"}
		require.NoError(t, db.Create(user).Error)
		require.NoError(t, db.Create(&model.PlayerProfile{UserID: user.ID, TrainerName: user.Username, Level: 1, ExperiencePoints: xp}).Error)
	}

	RefreshRanking(db, c, zap.NewNop())

	top, err := c.ZRevRange(context.Background(), reward.RankingKey, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "2"}, top, "ordered by experience descending")
}

func TestSweepStaleBattles(t *testing.T) {
	db := testutil.SetupTestDB(t)

	stale := &model.BattleState{
		BattleID:        "stale-battle",
		Player1ID:       1,
		Player1SiblonID: 1,
		BattleType:      model.BattleTypeTraining,
		Status:          model.BattleStatusActive,
		StartedAt:       time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, db.Create(stale).Error)
	// Backdate the activity timestamp past the sweep cutoff.
	require.NoError(t, db.Model(stale).UpdateColumn("updated_at", time.Now().Add(-2*time.Hour)).Error)

	fresh := &model.BattleState{
		BattleID:        "fresh-battle",
		Player1ID:       1,
		Player1SiblonID: 1,
		BattleType:      model.BattleTypeTraining,
		Status:          model.BattleStatusActive,
		StartedAt:       time.Now(),
	}
	require.NoError(t, db.Create(fresh).Error)

	SweepStaleBattles(db, time.Hour, zap.NewNop())

	var swept, kept model.BattleState
	require.NoError(t, db.Where("battle_id = ?", "stale-battle").First(&swept).Error)
	require.NoError(t, db.Where("battle_id = ?", "fresh-battle").First(&kept).Error)
	assert.Equal(t, model.BattleStatusAbandoned, swept.Status)
	require.NotNil(t, swept.CompletedAt)
	assert.Equal(t, model.BattleStatusActive, kept.Status)
}

func TestSweepStaleBattles_IgnoresTerminal(t *testing.T) {
	db := testutil.SetupTestDB(t)

	done := &model.BattleState{
		BattleID:        "done-battle",
		Player1ID:       1,
		Player1SiblonID: 1,
		BattleType:      model.BattleTypeTraining,
		Status:          model.BattleStatusCompleted,
		StartedAt:       time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, db.Create(done).Error)
	require.NoError(t, db.Model(done).UpdateColumn("updated_at", time.Now().Add(-2*time.Hour)).Error)

	SweepStaleBattles(db, time.Hour, zap.NewNop())

	var stored model.BattleState
	require.NoError(t, db.Where("battle_id = ?", "done-battle").First(&stored).Error)
	assert.Equal(t, model.BattleStatusCompleted, stored.Status)
}
