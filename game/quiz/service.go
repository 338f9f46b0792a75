// Package quiz implements the attempt lifecycle: starting an attempt with a
// max-score snapshot, grading a submission with set-equality per question,
// and handing the result to reward distribution in the same transaction.
package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/apperr"
	"github.com/javl1n/siblo-server/game/reward"
	"github.com/javl1n/siblo-server/model"
)

// Service drives quiz attempts for students.
type Service struct {
	db     *gorm.DB
	dist   *reward.Distributor
	logger *zap.Logger
}

func NewService(db *gorm.DB, dist *reward.Distributor, logger *zap.Logger) *Service {
	return &Service{db: db, dist: dist, logger: logger}
}

// QuestionView is a question as shown to a student mid-attempt. Choices are
// plain model rows; their IsCorrect flag is never serialized.
type QuestionView struct {
	model.Question
	Choices []model.QuestionChoice `json:"choices"`
}

// StartResult is the state returned when an attempt begins.
type StartResult struct {
	Attempt   *model.QuizAttempt `json:"attempt"`
	Questions []QuestionView     `json:"questions"`
	ExpiresAt *time.Time         `json:"expires_at"`
}

// ListPublished returns all quizzes visible to students.
func (s *Service) ListPublished(ctx context.Context) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := s.db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("is_featured DESC, created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

// GetPublished returns one published quiz with its questions and choices.
func (s *Service) GetPublished(ctx context.Context, quizID int64) (*model.Quiz, []QuestionView, error) {
	db := s.db.WithContext(ctx)
	quiz, err := s.loadPublished(db, quizID)
	if err != nil {
		return nil, nil, err
	}
	views, err := s.loadQuestions(db, quizID)
	if err != nil {
		return nil, nil, err
	}
	return quiz, views, nil
}

// Start opens a new attempt for the player. Unpublished quizzes are invisible
// and report NotFound. Only completed attempts count toward MaxAttempts, so a
// student can abandon an in-progress attempt without burning one.
func (s *Service) Start(ctx context.Context, playerID, quizID int64) (*StartResult, error) {
	db := s.db.WithContext(ctx)
	quiz, err := s.loadPublished(db, quizID)
	if err != nil {
		return nil, err
	}

	if quiz.MaxAttempts != nil {
		var completed int64
		if err := db.Model(&model.QuizAttempt{}).
			Where("quiz_id = ? AND player_profile_id = ? AND is_completed = ?", quizID, playerID, true).
			Count(&completed).Error; err != nil {
			return nil, err
		}
		if completed >= int64(*quiz.MaxAttempts) {
			return nil, fmt.Errorf("%w: quiz %d allows %d attempts", apperr.ErrAttemptLimit, quizID, *quiz.MaxAttempts)
		}
	}

	views, err := s.loadQuestions(db, quizID)
	if err != nil {
		return nil, err
	}
	maxScore := 0
	for _, v := range views {
		maxScore += v.Points
	}

	var total int64
	if err := db.Model(&model.QuizAttempt{}).
		Where("quiz_id = ? AND player_profile_id = ?", quizID, playerID).
		Count(&total).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	attempt := &model.QuizAttempt{
		QuizID:          quizID,
		PlayerProfileID: playerID,
		AttemptNumber:   int(total) + 1,
		StartedAt:       now,
		MaxScore:        maxScore,
	}
	if err := db.Create(attempt).Error; err != nil {
		return nil, err
	}

	result := &StartResult{Attempt: attempt, Questions: views}
	if quiz.TimeLimitMinutes != nil {
		expires := now.Add(time.Duration(*quiz.TimeLimitMinutes) * time.Minute)
		result.ExpiresAt = &expires
	}
	return result, nil
}

// AnswerSubmission is one question's selected choice ids as submitted.
type AnswerSubmission struct {
	QuestionID        int64   `json:"question_id" binding:"required"`
	SelectedChoiceIDs []int64 `json:"selected_choice_ids"`
}

// SubmitResult is the graded outcome plus the reward that was granted.
// Reward is nil when the attempt did not pass.
type SubmitResult struct {
	Attempt *model.QuizAttempt        `json:"attempt"`
	Answers []model.QuizAttemptAnswer `json:"answers"`
	Reward  *model.QuizReward         `json:"reward"`
}

// Submit grades a completed attempt. The attempt row is claimed with a
// guarded update so a concurrent second submit observes the terminal state
// and fails with Conflict; scoring, answer rows, and the reward grant all
// commit or roll back together.
func (s *Service) Submit(ctx context.Context, playerID, attemptID int64, answers []AnswerSubmission) (*SubmitResult, error) {
	db := s.db.WithContext(ctx)

	var attempt model.QuizAttempt
	if err := db.First(&attempt, attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: attempt %d", apperr.ErrNotFound, attemptID)
		}
		return nil, err
	}
	if attempt.PlayerProfileID != playerID {
		return nil, fmt.Errorf("%w: attempt %d belongs to another player", apperr.ErrForbidden, attemptID)
	}
	if attempt.IsCompleted {
		return nil, fmt.Errorf("%w: attempt %d already submitted", apperr.ErrConflict, attemptID)
	}

	var quiz model.Quiz
	if err := db.First(&quiz, attempt.QuizID).Error; err != nil {
		return nil, err
	}

	result := &SubmitResult{Attempt: &attempt}
	var player model.PlayerProfile

	err := db.Transaction(func(tx *gorm.DB) error {
		// Claim the row. A concurrent submit loses this race and sees zero
		// rows affected.
		claim := tx.Model(&model.QuizAttempt{}).
			Where("id = ? AND is_completed = ?", attemptID, false).
			Update("is_completed", true)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return fmt.Errorf("%w: attempt %d already submitted", apperr.ErrConflict, attemptID)
		}

		graded, score, err := s.grade(tx, &attempt, answers)
		if err != nil {
			return err
		}

		now := time.Now()
		percentage := 0.0
		if attempt.MaxScore > 0 {
			percentage = math.Round(float64(score)/float64(attempt.MaxScore)*100*100) / 100
		}
		attempt.Score = score
		attempt.Percentage = percentage
		attempt.Passed = percentage >= float64(quiz.PassThreshold)
		attempt.SubmittedAt = &now
		attempt.TimeTakenSeconds = int(now.Sub(attempt.StartedAt).Seconds())
		attempt.IsCompleted = true

		if err := tx.Model(&model.QuizAttempt{}).Where("id = ?", attemptID).Updates(map[string]interface{}{
			"score":              attempt.Score,
			"percentage":         attempt.Percentage,
			"passed":             attempt.Passed,
			"submitted_at":       attempt.SubmittedAt,
			"time_taken_seconds": attempt.TimeTakenSeconds,
		}).Error; err != nil {
			return err
		}

		// Rewards only exist for passing attempts. Daily activity moves on
		// every completed attempt either way.
		xpEarned := 0
		if attempt.Passed {
			if err := tx.First(&player, "id = ?", playerID).Error; err != nil {
				return err
			}
			amounts := reward.Calculate(quiz.DifficultyLevel, percentage)
			rewardRow, err := s.dist.Grant(tx, &attempt, &player, amounts)
			if err != nil {
				return err
			}
			result.Reward = rewardRow
			xpEarned = rewardRow.ExperiencePoints
		}
		if err := s.dist.BumpDailyActivity(tx, playerID, xpEarned, now); err != nil {
			return err
		}

		result.Answers = graded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Reward != nil {
		s.dist.RefreshRanking(ctx, &player)
	}
	s.logger.Info("attempt submitted",
		zap.Int64("attempt_id", attemptID),
		zap.Int64("player_id", playerID),
		zap.Int("score", attempt.Score),
		zap.Float64("percentage", attempt.Percentage),
		zap.Bool("passed", attempt.Passed))
	return result, nil
}

// grade compares each submitted answer's choice set against the question's
// correct set. Exact set equality earns the question's points; there is no
// partial credit. Submissions for question ids outside the quiz are skipped,
// and only the first submission for a question counts so a repeated id
// cannot inflate the score past MaxScore.
func (s *Service) grade(tx *gorm.DB, attempt *model.QuizAttempt, answers []AnswerSubmission) ([]model.QuizAttemptAnswer, int, error) {
	var questions []model.Question
	if err := tx.Where("quiz_id = ?", attempt.QuizID).Find(&questions).Error; err != nil {
		return nil, 0, err
	}
	byID := make(map[int64]*model.Question, len(questions))
	questionIDs := make([]int64, 0, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
		questionIDs = append(questionIDs, questions[i].ID)
	}

	var choices []model.QuestionChoice
	if len(questionIDs) > 0 {
		if err := tx.Where("question_id IN ?", questionIDs).Find(&choices).Error; err != nil {
			return nil, 0, err
		}
	}
	correctByQuestion := make(map[int64][]int64)
	for _, c := range choices {
		if c.IsCorrect {
			correctByQuestion[c.QuestionID] = append(correctByQuestion[c.QuestionID], c.ID)
		}
	}

	score := 0
	graded := make([]model.QuizAttemptAnswer, 0, len(answers))
	seen := make(map[int64]bool, len(answers))
	for _, ans := range answers {
		question, ok := byID[ans.QuestionID]
		if !ok || seen[ans.QuestionID] {
			continue
		}
		seen[ans.QuestionID] = true
		selected := sortedIDs(ans.SelectedChoiceIDs)
		correct := sortedIDs(correctByQuestion[ans.QuestionID])
		isCorrect := equalIDs(selected, correct)

		points := 0
		if isCorrect {
			points = question.Points
			score += points
		}

		row := model.QuizAttemptAnswer{
			QuizAttemptID:     attempt.ID,
			QuestionID:        ans.QuestionID,
			SelectedChoiceIDs: mustJSON(selected),
			CorrectChoiceIDs:  mustJSON(correct),
			IsCorrect:         isCorrect,
			PointsEarned:      points,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, 0, err
		}
		graded = append(graded, row)
	}
	return graded, score, nil
}

// ListAttempts returns the player's attempts for one quiz, newest first.
func (s *Service) ListAttempts(ctx context.Context, playerID, quizID int64) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := s.db.WithContext(ctx).
		Where("quiz_id = ? AND player_profile_id = ?", quizID, playerID).
		Order("attempt_number DESC").
		Find(&attempts).Error
	return attempts, err
}

// GetAttempt returns one attempt with its graded answers, owner only.
func (s *Service) GetAttempt(ctx context.Context, playerID, attemptID int64) (*model.QuizAttempt, []model.QuizAttemptAnswer, error) {
	db := s.db.WithContext(ctx)
	var attempt model.QuizAttempt
	if err := db.First(&attempt, attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: attempt %d", apperr.ErrNotFound, attemptID)
		}
		return nil, nil, err
	}
	if attempt.PlayerProfileID != playerID {
		return nil, nil, fmt.Errorf("%w: attempt %d belongs to another player", apperr.ErrForbidden, attemptID)
	}
	var answers []model.QuizAttemptAnswer
	if err := db.Where("quiz_attempt_id = ?", attemptID).Find(&answers).Error; err != nil {
		return nil, nil, err
	}
	return &attempt, answers, nil
}

func (s *Service) loadPublished(db *gorm.DB, quizID int64) (*model.Quiz, error) {
	var quiz model.Quiz
	err := db.Where("id = ? AND is_published = ?", quizID, true).First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: quiz %d", apperr.ErrNotFound, quizID)
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (s *Service) loadQuestions(db *gorm.DB, quizID int64) ([]QuestionView, error) {
	var questions []model.Question
	if err := db.Where("quiz_id = ?", quizID).Order("order_number ASC").Find(&questions).Error; err != nil {
		return nil, err
	}
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		var choices []model.QuestionChoice
		if err := db.Where("question_id = ?", q.ID).Order("order_number ASC").Find(&choices).Error; err != nil {
			return nil, err
		}
		views = append(views, QuestionView{Question: q, Choices: choices})
	}
	return views, nil
}

func sortedIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustJSON(v interface{}) datatypes.JSON {
	data, _ := json.Marshal(v)
	return datatypes.JSON(data)
}
