package model

import "time"

// SiblonSpecies is a read-only catalog entry: base stats plus the evolution
// chain (EvolvesFromID points at the previous stage).
type SiblonSpecies struct {
	ID                     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                   string `gorm:"uniqueIndex;size:32;not null" json:"name"`
	DisplayName            string `gorm:"size:64" json:"display_name"`
	Description            string `gorm:"size:255" json:"description"`
	EvolutionStage         int    `gorm:"default:1" json:"evolution_stage"`
	EvolvesFromID          *int64 `gorm:"index" json:"evolves_from_id"`
	EvolutionLevelRequired int    `json:"evolution_level_required"`
	BaseHP                 int    `gorm:"not null" json:"base_hp"`
	BaseAttack             int    `gorm:"not null" json:"base_attack"`
	BaseDefense            int    `gorm:"not null" json:"base_defense"`
	SpriteURL              string `gorm:"size:255" json:"sprite_url"`
	IsStarter              bool   `gorm:"default:false" json:"is_starter"`
}

// Siblon is a creature instance owned by one player. Stats grow on level-up
// and on evolution; 0 <= CurrentHP <= MaxHP always holds.
type Siblon struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerProfileID  int64     `gorm:"index:idx_siblon_owner;not null" json:"player_profile_id"`
	SpeciesID        int64     `gorm:"not null" json:"species_id"`
	Nickname         *string   `gorm:"size:32" json:"nickname"`
	Level            int       `gorm:"default:1" json:"level"`
	ExperiencePoints int64     `gorm:"default:0" json:"experience_points"`
	CurrentHP        int       `gorm:"not null" json:"current_hp"`
	MaxHP            int       `gorm:"not null" json:"max_hp"`
	Attack           int       `gorm:"not null" json:"attack"`
	Defense          int       `gorm:"not null" json:"defense"`
	IsInParty        bool      `gorm:"default:false" json:"is_in_party"`
	ObtainedAt       time.Time `gorm:"autoCreateTime" json:"obtained_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DisplayName returns the nickname if set, otherwise the given species name.
func (s *Siblon) DisplayName(species *SiblonSpecies) string {
	if s.Nickname != nil && *s.Nickname != "" {
		return *s.Nickname
	}
	if species != nil {
		return species.DisplayName
	}
	return ""
}

// IsFainted reports whether the siblon has no HP left.
func (s *Siblon) IsFainted() bool {
	return s.CurrentHP <= 0
}
