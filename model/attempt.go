package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuizAttempt is one student's pass through a quiz. Submission is terminal:
// once IsCompleted is set the row is never mutated again.
type QuizAttempt struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID           int64      `gorm:"index:idx_attempt_quiz;not null" json:"quiz_id"`
	PlayerProfileID  int64      `gorm:"index:idx_attempt_player;not null" json:"player_profile_id"`
	AttemptNumber    int        `gorm:"default:1" json:"attempt_number"`
	StartedAt        time.Time  `gorm:"not null" json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	Score            int        `gorm:"default:0" json:"score"`
	MaxScore         int        `gorm:"default:0" json:"max_score"`
	Percentage       float64    `gorm:"default:0" json:"percentage"`
	TimeTakenSeconds int        `gorm:"default:0" json:"time_taken_seconds"`
	Passed           bool       `gorm:"default:false" json:"passed"`
	IsCompleted      bool       `gorm:"default:false;index" json:"is_completed"`
}

// QuizAttemptAnswer records the grading of one question within an attempt.
// Choice-id sets are stored sorted so equality checks stay order-independent.
type QuizAttemptAnswer struct {
	ID                int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizAttemptID     int64          `gorm:"index:idx_answer_attempt;not null" json:"quiz_attempt_id"`
	QuestionID        int64          `gorm:"not null" json:"question_id"`
	SelectedChoiceIDs datatypes.JSON `json:"selected_choice_ids"`
	CorrectChoiceIDs  datatypes.JSON `json:"correct_choice_ids"`
	IsCorrect         bool           `gorm:"default:false" json:"is_correct"`
	PointsEarned      int            `gorm:"default:0" json:"points_earned"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
