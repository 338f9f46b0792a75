package model

import "time"

// PlayerProfile holds the game-progression state for a student account.
// Experience and coins are mutated only through the progression ledger.
type PlayerProfile struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	TrainerName      string    `gorm:"size:32;not null" json:"trainer_name"`
	Level            int       `gorm:"default:1" json:"level"`
	ExperiencePoints int64     `gorm:"default:0" json:"experience_points"`
	Coins            int64     `gorm:"default:0" json:"coins"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
