package model

import "time"

// QuizReward is the one-to-one XP/coin grant for a completed attempt. Quiz
// rewards are applied eagerly at submission; the claimed fields stay for
// reward sources that defer distribution.
type QuizReward struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizAttemptID    int64      `gorm:"uniqueIndex;not null" json:"quiz_attempt_id"`
	PlayerProfileID  int64      `gorm:"index;not null" json:"player_profile_id"`
	ExperiencePoints int        `gorm:"default:0" json:"experience_points"`
	Coins            int        `gorm:"default:0" json:"coins"`
	Claimed          bool       `gorm:"default:false" json:"claimed"`
	ClaimedAt        *time.Time `json:"claimed_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
