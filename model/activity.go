package model

// DailyActivity aggregates one player's activity for one calendar day.
// ActivityDate is a YYYY-MM-DD string so the unique index works the same on
// SQLite and MySQL.
type DailyActivity struct {
	ID               int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerProfileID  int64  `gorm:"uniqueIndex:idx_activity_day;not null" json:"player_profile_id"`
	ActivityDate     string `gorm:"uniqueIndex:idx_activity_day;size:10;not null" json:"activity_date"`
	QuizzesCompleted int    `gorm:"default:0" json:"quizzes_completed"`
	ExperienceGained int    `gorm:"default:0" json:"experience_gained"`
	BattlesWon       int    `gorm:"default:0" json:"battles_won"`
	BattlesLost      int    `gorm:"default:0" json:"battles_lost"`
	LoginStreak      int    `gorm:"default:0" json:"login_streak"`
}
