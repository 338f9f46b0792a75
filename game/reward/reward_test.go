package reward

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/game/progression"
	"github.com/javl1n/siblo-server/model"
	"github.com/javl1n/siblo-server/testutil"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		difficulty string
		percentage float64
		wantXP     int
		wantCoins  int
	}{
		{"easy half score", model.DifficultyEasy, 50, 25, 13},
		{"easy perfect", model.DifficultyEasy, 100, 75, 38},
		{"medium perfect", model.DifficultyMedium, 100, 150, 75},
		{"hard perfect", model.DifficultyHard, 100, 300, 150},
		{"hard partial", model.DifficultyHard, 80, 160, 80},
		{"unknown difficulty", "expert", 100, 113, 60},
		{"zero score", model.DifficultyMedium, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.difficulty, tt.percentage)
			assert.Equal(t, tt.wantXP, got.ExperiencePoints)
			assert.Equal(t, tt.wantCoins, got.Coins)
		})
	}
}

func setupDistributor(t *testing.T) (*gorm.DB, *Distributor) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ledger := progression.NewLedger(rand.New(rand.NewSource(1)))
	d := NewDistributor(ledger, testutil.SetupTestCache(t), zap.NewNop())
	return db, d
}

func seedGrantFixture(t *testing.T, db *gorm.DB) (*model.PlayerProfile, *model.Siblon, *model.QuizAttempt) {
	t.Helper()
	user := &model.User{Username: "brock", Email: "brock@example.com", PasswordHash: "x", UserType: model.UserTypeStudent}
	require.NoError(t, db.Create(user).Error)
	player := &model.PlayerProfile{UserID: user.ID, TrainerName: "Brock", Level: 1}
	require.NoError(t, db.Create(player).Error)

	species := &model.SiblonSpecies{Name: "aquafin", DisplayName: "Aquafin", BaseHP: 28, BaseAttack: 9, BaseDefense: 10}
	require.NoError(t, db.Create(species).Error)
	siblon := &model.Siblon{PlayerProfileID: player.ID, SpeciesID: species.ID, Level: 1, CurrentHP: 28, MaxHP: 28, Attack: 9, Defense: 10, IsInParty: true}
	require.NoError(t, db.Create(siblon).Error)

	quiz := &model.Quiz{Title: "Fractions", DifficultyLevel: model.DifficultyHard, IsPublished: true}
	require.NoError(t, db.Create(quiz).Error)
	attempt := &model.QuizAttempt{QuizID: quiz.ID, PlayerProfileID: player.ID, StartedAt: time.Now(), MaxScore: 10}
	require.NoError(t, db.Create(attempt).Error)
	return player, siblon, attempt
}

func TestGrant_CreditsPlayerAndParty(t *testing.T) {
	db, d := setupDistributor(t)
	player, siblon, attempt := seedGrantFixture(t, db)

	amounts := Calculate(model.DifficultyHard, 100)
	row, err := d.Grant(db, attempt, player, amounts)
	require.NoError(t, err)

	assert.Equal(t, 300, row.ExperiencePoints)
	assert.Equal(t, 150, row.Coins)
	assert.True(t, row.Claimed)
	require.NotNil(t, row.ClaimedAt)

	assert.Equal(t, int64(300), player.ExperiencePoints)
	assert.Equal(t, int64(150), player.Coins)

	// Party siblon receives the same XP, linked to the attempt.
	var stored model.Siblon
	require.NoError(t, db.First(&stored, siblon.ID).Error)
	assert.Equal(t, int64(300), stored.ExperiencePoints)

	var levelUp model.SiblonLevelUp
	require.NoError(t, db.Where("siblon_id = ?", siblon.ID).First(&levelUp).Error)
	require.NotNil(t, levelUp.QuizAttemptID)
	assert.Equal(t, attempt.ID, *levelUp.QuizAttemptID)
}

func TestGrant_SecondGrantRejected(t *testing.T) {
	db, d := setupDistributor(t)
	player, _, attempt := seedGrantFixture(t, db)

	amounts := Calculate(model.DifficultyEasy, 50)
	_, err := d.Grant(db, attempt, player, amounts)
	require.NoError(t, err)

	_, err = d.Grant(db, attempt, player, amounts)
	assert.Error(t, err, "unique index on quiz_attempt_id rejects a duplicate grant")
}

func TestBumpDailyActivity_Accumulates(t *testing.T) {
	db, d := setupDistributor(t)
	player, _, _ := seedGrantFixture(t, db)
	now := time.Now()

	require.NoError(t, d.BumpDailyActivity(db, player.ID, 40, now))
	// A failing attempt the same day counts the quiz but adds no XP.
	require.NoError(t, d.BumpDailyActivity(db, player.ID, 0, now))

	var activities []model.DailyActivity
	require.NoError(t, db.Where("player_profile_id = ?", player.ID).Find(&activities).Error)
	require.Len(t, activities, 1)
	assert.Equal(t, 2, activities[0].QuizzesCompleted)
	assert.Equal(t, 40, activities[0].ExperienceGained)
}

func TestRefreshRanking(t *testing.T) {
	db, d := setupDistributor(t)
	player, _, attempt := seedGrantFixture(t, db)

	_, err := d.Grant(db, attempt, player, Amounts{ExperiencePoints: 120, Coins: 0})
	require.NoError(t, err)
	d.RefreshRanking(context.Background(), player)

	score, err := d.cache.ZScore(context.Background(), RankingKey, "1")
	require.NoError(t, err)
	assert.Equal(t, float64(120), score)
}

func TestClaim_Idempotent(t *testing.T) {
	db, d := setupDistributor(t)
	player, _, attempt := seedGrantFixture(t, db)

	row, err := d.Grant(db, attempt, player, Amounts{ExperiencePoints: 10, Coins: 5})
	require.NoError(t, err)
	firstClaimedAt := *row.ClaimedAt

	require.NoError(t, d.Claim(db, row))
	assert.Equal(t, firstClaimedAt, *row.ClaimedAt)
}
