package model

import "time"

// Difficulty levels recognized by the reward tables.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question types.
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeMultiSelect    = "multi_select"
	QuestionTypeTrueFalse      = "true_false"
)

// Quiz is a named set of questions. The published flag gates visibility for
// students; scoring semantics are frozen per attempt via the max-score
// snapshot taken at start.
type Quiz struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title            string    `gorm:"size:128;not null" json:"title"`
	Description      string    `gorm:"size:1024" json:"description"`
	Subject          string    `gorm:"size:64;index" json:"subject"`
	Topic            string    `gorm:"size:64" json:"topic"`
	DifficultyLevel  string    `gorm:"size:16;index" json:"difficulty_level"`
	TotalPoints      int       `gorm:"default:0" json:"total_points"`
	TimeLimitMinutes *int      `json:"time_limit_minutes"`
	PassThreshold    int       `gorm:"default:70" json:"pass_threshold"`
	MaxAttempts      *int      `json:"max_attempts"`
	CreatedBy        int64     `gorm:"index" json:"created_by"`
	IsPublished      bool      `gorm:"default:false;index" json:"is_published"`
	IsFeatured       bool      `gorm:"default:false" json:"is_featured"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Question belongs to a quiz. Full credit requires the submitted choice set
// to equal the correct choice set exactly.
type Question struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID       int64  `gorm:"index:idx_question_quiz;not null" json:"quiz_id"`
	QuestionText string `gorm:"size:1024;not null" json:"question_text"`
	QuestionType string `gorm:"size:24;default:multiple_choice" json:"question_type"`
	Points       int    `gorm:"default:1" json:"points"`
	OrderNumber  int    `gorm:"default:0" json:"order_number"`
	Explanation  string `gorm:"size:1024" json:"explanation"`
}

// QuestionChoice is one answer option. IsCorrect must never be serialized to
// a client before the owning attempt is completed.
type QuestionChoice struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestionID  int64  `gorm:"index:idx_choice_question;not null" json:"question_id"`
	ChoiceText  string `gorm:"size:512;not null" json:"choice_text"`
	IsCorrect   bool   `gorm:"default:false" json:"-"`
	OrderNumber int    `gorm:"default:0" json:"order_number"`
}
