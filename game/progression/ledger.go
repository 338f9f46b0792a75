// Package progression owns experience, coin and level state for players and
// siblons. All mutations go through the Ledger so leveling, stat growth and
// evolution stay consistent with the stored history records.
package progression

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/apperr"
	"github.com/javl1n/siblo-server/model"
)

const (
	playerLevelStep = 1000 // next player level at level * 1000 cumulative XP
	siblonLevelStep = 50   // next siblon level at level * 50 cumulative XP
)

// Ledger applies experience and coin grants. The random source drives
// stat growth rolls and is injected so tests can pin exact deltas.
type Ledger struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewLedger(rng *rand.Rand) *Ledger {
	return &Ledger{rng: rng}
}

// PlayerLevelThreshold returns the cumulative XP needed to reach level+1.
func PlayerLevelThreshold(level int) int64 {
	return int64(level) * playerLevelStep
}

// SiblonLevelThreshold returns the cumulative XP needed to reach level+1.
func SiblonLevelThreshold(level int) int64 {
	return int64(level) * siblonLevelStep
}

// AddPlayerExperience grants XP to a player and applies every level-up the
// new cumulative total crosses. The player struct is updated in place and
// persisted on tx.
func (l *Ledger) AddPlayerExperience(tx *gorm.DB, player *model.PlayerProfile, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative experience amount %d", apperr.ErrInvalidArgument, amount)
	}
	player.ExperiencePoints += amount
	for player.ExperiencePoints >= PlayerLevelThreshold(player.Level) {
		player.Level++
	}
	return tx.Model(player).Updates(map[string]interface{}{
		"experience_points": player.ExperiencePoints,
		"level":             player.Level,
	}).Error
}

// AddPlayerCoins grants coins to a player.
func (l *Ledger) AddPlayerCoins(tx *gorm.DB, player *model.PlayerProfile, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative coin amount %d", apperr.ErrInvalidArgument, amount)
	}
	player.Coins += amount
	return tx.Model(player).Update("coins", player.Coins).Error
}

// GrowthReport lists what happened during one experience grant.
type GrowthReport struct {
	LevelUps   []model.SiblonLevelUp   `json:"level_ups"`
	Evolutions []model.SiblonEvolution `json:"evolutions"`
}

// Leveled reports whether the grant crossed at least one level threshold.
func (r *GrowthReport) Leveled() bool {
	return len(r.LevelUps) > 0
}

// AddSiblonExperience grants XP to a siblon. Each level crossed rolls stat
// growth, fully heals, and records a level-up row; after each level's growth
// the evolution chain is checked once (at most one stage per level gained).
// attemptID links the history rows to the quiz attempt that earned the XP.
func (l *Ledger) AddSiblonExperience(tx *gorm.DB, siblon *model.Siblon, amount int64, attemptID *int64) (*GrowthReport, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: negative experience amount %d", apperr.ErrInvalidArgument, amount)
	}
	report := &GrowthReport{}
	siblon.ExperiencePoints += amount

	for siblon.ExperiencePoints >= SiblonLevelThreshold(siblon.Level) {
		levelUp, err := l.levelUp(tx, siblon, attemptID)
		if err != nil {
			return nil, err
		}
		report.LevelUps = append(report.LevelUps, *levelUp)

		evolution, err := l.maybeEvolve(tx, siblon)
		if err != nil {
			return nil, err
		}
		if evolution != nil {
			report.Evolutions = append(report.Evolutions, *evolution)
		}
	}

	if err := tx.Model(siblon).Updates(map[string]interface{}{
		"experience_points": siblon.ExperiencePoints,
		"level":             siblon.Level,
		"species_id":        siblon.SpeciesID,
		"current_hp":        siblon.CurrentHP,
		"max_hp":            siblon.MaxHP,
		"attack":            siblon.Attack,
		"defense":           siblon.Defense,
	}).Error; err != nil {
		return nil, err
	}
	return report, nil
}

// levelUp applies one level gain with random stat growth and a full heal.
func (l *Ledger) levelUp(tx *gorm.DB, siblon *model.Siblon, attemptID *int64) (*model.SiblonLevelUp, error) {
	l.mu.Lock()
	hpGain := 3 + l.rng.Intn(6)  // [3,8]
	atkGain := 1 + l.rng.Intn(3) // [1,3]
	defGain := 1 + l.rng.Intn(3) // [1,3]
	l.mu.Unlock()

	record := &model.SiblonLevelUp{
		SiblonID:        siblon.ID,
		QuizAttemptID:   attemptID,
		OldLevel:        siblon.Level,
		NewLevel:        siblon.Level + 1,
		HPIncrease:      hpGain,
		AttackIncrease:  atkGain,
		DefenseIncrease: defGain,
	}

	siblon.Level++
	siblon.MaxHP += hpGain
	siblon.Attack += atkGain
	siblon.Defense += defGain
	siblon.CurrentHP = siblon.MaxHP

	if err := tx.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// maybeEvolve advances the siblon one evolution stage if its current species
// has a successor whose level requirement is met. Stat adjustment applies the
// delta between the two species' base stats so accumulated growth is kept.
func (l *Ledger) maybeEvolve(tx *gorm.DB, siblon *model.Siblon) (*model.SiblonEvolution, error) {
	var current model.SiblonSpecies
	if err := tx.First(&current, siblon.SpeciesID).Error; err != nil {
		return nil, err
	}

	var next model.SiblonSpecies
	err := tx.Where("evolves_from_id = ?", current.ID).First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if siblon.Level < next.EvolutionLevelRequired {
		return nil, nil
	}

	siblon.SpeciesID = next.ID
	siblon.MaxHP += next.BaseHP - current.BaseHP
	siblon.Attack += next.BaseAttack - current.BaseAttack
	siblon.Defense += next.BaseDefense - current.BaseDefense
	siblon.CurrentHP = siblon.MaxHP

	record := &model.SiblonEvolution{
		SiblonID:       siblon.ID,
		FromSpeciesID:  current.ID,
		ToSpeciesID:    next.ID,
		EvolvedAtLevel: siblon.Level,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// Heal restores a siblon to full HP.
func (l *Ledger) Heal(tx *gorm.DB, siblon *model.Siblon) error {
	siblon.CurrentHP = siblon.MaxHP
	return tx.Model(siblon).Update("current_hp", siblon.CurrentHP).Error
}

// ApplyDamage reduces a siblon's HP, clamped at zero.
func (l *Ledger) ApplyDamage(tx *gorm.DB, siblon *model.Siblon, damage int) error {
	if damage < 0 {
		return fmt.Errorf("%w: negative damage %d", apperr.ErrInvalidArgument, damage)
	}
	siblon.CurrentHP -= damage
	if siblon.CurrentHP < 0 {
		siblon.CurrentHP = 0
	}
	return tx.Model(siblon).Update("current_hp", siblon.CurrentHP).Error
}
