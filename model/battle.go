package model

import (
	"time"

	"gorm.io/datatypes"
)

// Battle lifecycle states. There is no transition out of completed or
// abandoned.
const (
	BattleStatusActive    = "active"
	BattleStatusCompleted = "completed"
	BattleStatusAbandoned = "abandoned"
)

// Battle types.
const (
	BattleTypeTraining = "training"
	BattleTypePvE      = "pve"
	BattleTypePvP      = "pvp"
)

// BattleState is one two-party encounter. HP columns are snapshots taken at
// start and are independent of the siblons' own CurrentHP. BattleLog is an
// append-only JSON array of tagged entries (see game/battle).
type BattleState struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"-"`
	BattleID        string         `gorm:"uniqueIndex;size:36;not null" json:"battle_id"`
	Player1ID       int64          `gorm:"index;not null" json:"player1_id"`
	Player2ID       *int64         `gorm:"index" json:"player2_id"`
	Player1SiblonID int64          `gorm:"not null" json:"player1_siblon_id"`
	Player2SiblonID *int64         `json:"player2_siblon_id"`
	CurrentTurn     int            `gorm:"default:1" json:"current_turn"`
	TurnPlayerID    int64          `json:"turn_player_id"`
	Player1HP       int            `json:"player1_hp"`
	Player2HP       int            `json:"player2_hp"`
	BattleType      string         `gorm:"size:16;not null" json:"battle_type"`
	Status          string         `gorm:"size:16;default:active;index" json:"status"`
	WinnerID        *int64         `json:"winner_id"`
	BattleLog       datatypes.JSON `json:"battle_log"`
	StartedAt       time.Time      `gorm:"not null" json:"started_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at"`
}

// IsActive reports whether turn actions are still accepted.
func (b *BattleState) IsActive() bool {
	return b.Status == BattleStatusActive
}

// HasParticipant reports whether the given player profile is one of the two
// participant slots.
func (b *BattleState) HasParticipant(playerID int64) bool {
	if b.Player1ID == playerID {
		return true
	}
	return b.Player2ID != nil && *b.Player2ID == playerID
}
