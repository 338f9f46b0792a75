package model

import "time"

// SiblonLevelUp records one level gained by a siblon with the exact stat
// deltas rolled, optionally linked to the quiz attempt that granted the XP.
type SiblonLevelUp struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SiblonID        int64     `gorm:"index:idx_levelup_siblon;not null" json:"siblon_id"`
	QuizAttemptID   *int64    `gorm:"index" json:"quiz_attempt_id"`
	OldLevel        int       `gorm:"not null" json:"old_level"`
	NewLevel        int       `gorm:"not null" json:"new_level"`
	HPIncrease      int       `gorm:"not null" json:"hp_increase"`
	AttackIncrease  int       `gorm:"not null" json:"attack_increase"`
	DefenseIncrease int       `gorm:"not null" json:"defense_increase"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SiblonEvolution records a one-way species change.
type SiblonEvolution struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SiblonID       int64     `gorm:"index:idx_evolution_siblon;not null" json:"siblon_id"`
	FromSpeciesID  int64     `gorm:"not null" json:"from_species_id"`
	ToSpeciesID    int64     `gorm:"not null" json:"to_species_id"`
	EvolvedAtLevel int       `gorm:"not null" json:"evolved_at_level"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
