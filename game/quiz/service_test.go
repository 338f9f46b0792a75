package quiz

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/apperr"
	"github.com/javl1n/siblo-server/game/progression"
	"github.com/javl1n/siblo-server/game/reward"
	"github.com/javl1n/siblo-server/model"
	"github.com/javl1n/siblo-server/testutil"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	player  *model.PlayerProfile
	quiz    *model.Quiz
	q1      *model.Question // multiple choice, 2 points, correct = c1a
	q2      *model.Question // multi select, 3 points, correct = {c2a, c2c}
	c1a     *model.QuestionChoice
	c1b     *model.QuestionChoice
	c2a     *model.QuestionChoice
	c2b     *model.QuestionChoice
	c2c     *model.QuestionChoice
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ledger := progression.NewLedger(rand.New(rand.NewSource(1)))
	dist := reward.NewDistributor(ledger, testutil.SetupTestCache(t), zap.NewNop())
	svc := NewService(db, dist, zap.NewNop())

	user := &model.User{Username: "may", Email: "may@example.com", PasswordHash: "x", UserType: model.UserTypeStudent}
	require.NoError(t, db.Create(user).Error)
	player := &model.PlayerProfile{UserID: user.ID, TrainerName: "May", Level: 1}
	require.NoError(t, db.Create(player).Error)

	maxAttempts := 2
	quiz := &model.Quiz{Title: "Photosynthesis", DifficultyLevel: model.DifficultyEasy, PassThreshold: 60, MaxAttempts: &maxAttempts, IsPublished: true}
	require.NoError(t, db.Create(quiz).Error)

	q1 := &model.Question{QuizID: quiz.ID, QuestionText: "Inputs?", QuestionType: model.QuestionTypeMultipleChoice, Points: 2, OrderNumber: 1}
	q2 := &model.Question{QuizID: quiz.ID, QuestionText: "Outputs?", QuestionType: model.QuestionTypeMultiSelect, Points: 3, OrderNumber: 2}
	require.NoError(t, db.Create(q1).Error)
	require.NoError(t, db.Create(q2).Error)

	c1a := &model.QuestionChoice{QuestionID: q1.ID, ChoiceText: "Sunlight", IsCorrect: true}
	c1b := &model.QuestionChoice{QuestionID: q1.ID, ChoiceText: "Darkness"}
	c2a := &model.QuestionChoice{QuestionID: q2.ID, ChoiceText: "Oxygen", IsCorrect: true}
	c2b := &model.QuestionChoice{QuestionID: q2.ID, ChoiceText: "Iron"}
	c2c := &model.QuestionChoice{QuestionID: q2.ID, ChoiceText: "Glucose", IsCorrect: true}
	for _, c := range []*model.QuestionChoice{c1a, c1b, c2a, c2b, c2c} {
		require.NoError(t, db.Create(c).Error)
	}

	return &fixture{db: db, svc: svc, player: player, quiz: quiz, q1: q1, q2: q2, c1a: c1a, c1b: c1b, c2a: c2a, c2b: c2b, c2c: c2c}
}

func TestStart_SnapshotsMaxScore(t *testing.T) {
	f := setupFixture(t)

	res, err := f.svc.Start(context.Background(), f.player.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Attempt.MaxScore)
	assert.Equal(t, 1, res.Attempt.AttemptNumber)
	assert.Len(t, res.Questions, 2)
	assert.Nil(t, res.ExpiresAt)
}

func TestStart_ExpiryAdvisory(t *testing.T) {
	f := setupFixture(t)
	limit := 30
	require.NoError(t, f.db.Model(f.quiz).Update("time_limit_minutes", limit).Error)

	res, err := f.svc.Start(context.Background(), f.player.ID, f.quiz.ID)
	require.NoError(t, err)
	require.NotNil(t, res.ExpiresAt)
	assert.WithinDuration(t, res.Attempt.StartedAt.Add(30*time.Minute), *res.ExpiresAt, time.Second)
}

func TestStart_UnpublishedIsNotFound(t *testing.T) {
	f := setupFixture(t)
	require.NoError(t, f.db.Model(f.quiz).Update("is_published", false).Error)

	_, err := f.svc.Start(context.Background(), f.player.ID, f.quiz.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStart_MaxAttemptsCountsCompletedOnly(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Two completed attempts hit the limit of 2.
	for i := 0; i < 2; i++ {
		res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, nil)
		require.NoError(t, err)
	}
	_, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	assert.ErrorIs(t, err, apperr.ErrAttemptLimit)
}

func TestStart_InProgressDoesNotBurnAttempt(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Abandoned in-progress attempts never count toward the limit.
	for i := 0; i < 3; i++ {
		_, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
		require.NoError(t, err)
	}
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Attempt.AttemptNumber)
}

func TestSubmit_FullCredit(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)

	sub, err := f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, []AnswerSubmission{
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1a.ID}},
		{QuestionID: f.q2.ID, SelectedChoiceIDs: []int64{f.c2c.ID, f.c2a.ID}}, // order-independent
	})
	require.NoError(t, err)

	assert.Equal(t, 5, sub.Attempt.Score)
	assert.Equal(t, 100.0, sub.Attempt.Percentage)
	assert.True(t, sub.Attempt.Passed)
	require.NotNil(t, sub.Attempt.SubmittedAt)

	// Perfect score on easy: 50 * 1.0 * 1.5 = 75 XP, 25 * 1.5 = 38 coins.
	require.NotNil(t, sub.Reward)
	assert.Equal(t, 75, sub.Reward.ExperiencePoints)
	assert.Equal(t, 38, sub.Reward.Coins)
}

func TestSubmit_NoPartialCredit(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)

	// One of two correct multi-select choices earns nothing.
	sub, err := f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, []AnswerSubmission{
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1a.ID}},
		{QuestionID: f.q2.ID, SelectedChoiceIDs: []int64{f.c2a.ID}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, sub.Attempt.Score)
	assert.Equal(t, 40.0, sub.Attempt.Percentage)
	assert.False(t, sub.Attempt.Passed)
}

func TestSubmit_FailingAttemptGrantsNoReward(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)

	sub, err := f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, []AnswerSubmission{
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1b.ID}},
	})
	require.NoError(t, err)
	assert.False(t, sub.Attempt.Passed)
	assert.Nil(t, sub.Reward)

	var count int64
	require.NoError(t, f.db.Model(&model.QuizReward{}).Where("quiz_attempt_id = ?", res.Attempt.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	// The player earns nothing.
	var player model.PlayerProfile
	require.NoError(t, f.db.First(&player, f.player.ID).Error)
	assert.Equal(t, int64(0), player.ExperiencePoints)
	assert.Equal(t, int64(0), player.Coins)

	// But the completed attempt still counts toward today's activity.
	var activity model.DailyActivity
	require.NoError(t, f.db.Where("player_profile_id = ?", f.player.ID).First(&activity).Error)
	assert.Equal(t, 1, activity.QuizzesCompleted)
	assert.Equal(t, 0, activity.ExperienceGained)
}

func TestSubmit_DuplicateQuestionCountsOnce(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)

	// Repeating a correct answer must not push the score past MaxScore.
	sub, err := f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, []AnswerSubmission{
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1a.ID}},
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1a.ID}},
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1a.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Attempt.Score)
	assert.Equal(t, 40.0, sub.Attempt.Percentage)
	assert.Len(t, sub.Answers, 1, "one answer row per question")
}

func TestSubmit_UnknownQuestionSkipped(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)

	sub, err := f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, []AnswerSubmission{
		{QuestionID: 99999, SelectedChoiceIDs: []int64{1}},
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1a.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Attempt.Score)
	assert.Len(t, sub.Answers, 1, "foreign question ids are silently dropped")
}

func TestSubmit_SecondSubmitConflicts(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, []AnswerSubmission{
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1a.ID}},
		{QuestionID: f.q2.ID, SelectedChoiceIDs: []int64{f.c2a.ID, f.c2c.ID}},
	})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// No double reward either.
	var count int64
	require.NoError(t, f.db.Model(&model.QuizReward{}).Where("quiz_attempt_id = ?", res.Attempt.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmit_OtherPlayersAttemptForbidden(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)

	other := &model.User{Username: "gary", Email: "gary@example.com", PasswordHash: "x", UserType: model.UserTypeStudent}
	require.NoError(t, f.db.Create(other).Error)
	otherPlayer := &model.PlayerProfile{UserID: other.ID, TrainerName: "Gary", Level: 1}
	require.NoError(t, f.db.Create(otherPlayer).Error)

	_, err = f.svc.Submit(ctx, otherPlayer.ID, res.Attempt.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSubmit_UnknownAttempt(t *testing.T) {
	f := setupFixture(t)
	_, err := f.svc.Submit(context.Background(), f.player.ID, 424242, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSubmit_PercentageRounding(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Add a third question so 2 of 8 points gives a repeating percentage.
	q3 := &model.Question{QuizID: f.quiz.ID, QuestionText: "Bonus", Points: 3, OrderNumber: 3}
	require.NoError(t, f.db.Create(q3).Error)
	c3 := &model.QuestionChoice{QuestionID: q3.ID, ChoiceText: "Yes", IsCorrect: true}
	require.NoError(t, f.db.Create(c3).Error)

	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)
	require.Equal(t, 8, res.Attempt.MaxScore)

	sub, err := f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, []AnswerSubmission{
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1a.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, sub.Attempt.Percentage)

	sub2Start, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)
	sub2, err := f.svc.Submit(ctx, f.player.ID, sub2Start.Attempt.ID, []AnswerSubmission{
		{QuestionID: f.q2.ID, SelectedChoiceIDs: []int64{f.c2a.ID, f.c2c.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, 37.5, sub2.Attempt.Percentage)
}

func TestSubmit_ZeroMaxScore(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	empty := &model.Quiz{Title: "Empty", DifficultyLevel: model.DifficultyMedium, IsPublished: true}
	require.NoError(t, f.db.Create(empty).Error)

	res, err := f.svc.Start(ctx, f.player.ID, empty.ID)
	require.NoError(t, err)
	require.Equal(t, 0, res.Attempt.MaxScore)

	sub, err := f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sub.Attempt.Percentage)
	assert.False(t, sub.Attempt.Passed)
}

func TestGetAttempt_OwnerOnly(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	res, err := f.svc.Start(ctx, f.player.ID, f.quiz.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.player.ID, res.Attempt.ID, []AnswerSubmission{
		{QuestionID: f.q1.ID, SelectedChoiceIDs: []int64{f.c1b.ID}},
	})
	require.NoError(t, err)

	attempt, answers, err := f.svc.GetAttempt(ctx, f.player.ID, res.Attempt.ID)
	require.NoError(t, err)
	assert.True(t, attempt.IsCompleted)
	require.Len(t, answers, 1)
	assert.False(t, answers[0].IsCorrect)

	_, _, err = f.svc.GetAttempt(ctx, f.player.ID+1, res.Attempt.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestListPublished(t *testing.T) {
	f := setupFixture(t)
	hidden := &model.Quiz{Title: "Draft", IsPublished: false}
	require.NoError(t, f.db.Create(hidden).Error)

	quizzes, err := f.svc.ListPublished(context.Background())
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, f.quiz.ID, quizzes[0].ID)
}
