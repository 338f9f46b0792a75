// Package battle implements the turn-based battle state machine: start,
// inspect, attack, and forfeit, with an append-only tagged log per battle.
package battle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javl1n/siblo-server/apperr"
	"github.com/javl1n/siblo-server/model"
)

// AI opponent fallbacks used for training and pve battles until generated
// opponents land. TODO: synthesize a real opponent siblon from the species
// catalog instead of flat stats.
const (
	aiFallbackHP        = 50
	aiLevelHandicap     = 2
	aiBaseAttack        = 5
	aiAttackPerLevel    = 2
	aiBaseDefense       = 3
	aiDefensePerLevel   = 1
	damageRandomSpread  = 5 // variance roll is [0, spread)
	minimumDamage       = 1
)

// Service runs battles. The random source drives damage variance and is
// injected for deterministic tests.
type Service struct {
	db     *gorm.DB
	mu     sync.Mutex
	rng    *rand.Rand
	logger *zap.Logger
}

func NewService(db *gorm.DB, rng *rand.Rand, logger *zap.Logger) *Service {
	return &Service{db: db, rng: rng, logger: logger}
}

// View is a battle state with its log decoded for callers.
type View struct {
	Battle *model.BattleState `json:"battle"`
	Log    []LogEntry         `json:"log"`
}

// Start opens a battle for one of the initiator's siblons. Training and pve
// battles synthesize an AI opponent; pvp requires a resolvable opponent with
// at least one party siblon.
func (s *Service) Start(ctx context.Context, initiatorID, siblonID int64, battleType string, opponentID *int64) (*View, error) {
	switch battleType {
	case model.BattleTypeTraining, model.BattleTypePvE, model.BattleTypePvP:
	default:
		return nil, fmt.Errorf("%w: battle type %q", apperr.ErrInvalidArgument, battleType)
	}

	db := s.db.WithContext(ctx)
	var siblon model.Siblon
	if err := db.First(&siblon, siblonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: siblon %d", apperr.ErrNotFound, siblonID)
		}
		return nil, err
	}
	if siblon.PlayerProfileID != initiatorID {
		return nil, fmt.Errorf("%w: siblon %d belongs to another player", apperr.ErrForbidden, siblonID)
	}

	battle := &model.BattleState{
		BattleID:        uuid.NewString(),
		Player1ID:       initiatorID,
		Player1SiblonID: siblon.ID,
		CurrentTurn:     1,
		TurnPlayerID:    initiatorID,
		Player1HP:       siblon.CurrentHP,
		BattleType:      battleType,
		Status:          model.BattleStatusActive,
		StartedAt:       time.Now(),
	}

	if battleType == model.BattleTypePvP {
		if opponentID == nil {
			return nil, fmt.Errorf("%w: pvp battle requires an opponent", apperr.ErrInvalidArgument)
		}
		var opponent model.PlayerProfile
		if err := db.First(&opponent, *opponentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: opponent %d", apperr.ErrNotFound, *opponentID)
			}
			return nil, err
		}
		var opponentSiblon model.Siblon
		err := db.Where("player_profile_id = ? AND is_in_party = ?", opponent.ID, true).
			Order("id ASC").First(&opponentSiblon).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: opponent %d has no party siblon", apperr.ErrInvalidArgument, *opponentID)
		}
		if err != nil {
			return nil, err
		}
		battle.Player2ID = &opponent.ID
		battle.Player2SiblonID = &opponentSiblon.ID
		battle.Player2HP = opponentSiblon.CurrentHP
	} else {
		battle.Player2HP = aiFallbackHP
	}

	startEntry := LogEntry{
		Action:   ActionBattleStart,
		PlayerID: initiatorID,
		Message:  fmt.Sprintf("%s battle started", battleType),
		Turn:     1,
		At:       time.Now(),
	}
	log, err := appendLog(nil, startEntry)
	if err != nil {
		return nil, err
	}
	battle.BattleLog = log

	if err := db.Create(battle).Error; err != nil {
		return nil, err
	}
	s.logger.Info("battle started",
		zap.String("battle_id", battle.BattleID),
		zap.String("battle_type", battleType),
		zap.Int64("player_id", initiatorID))
	return s.view(battle)
}

// Show returns the full battle state for a participant.
func (s *Service) Show(ctx context.Context, battleID string, requesterID int64) (*View, error) {
	battle, err := s.load(ctx, battleID, requesterID)
	if err != nil {
		return nil, err
	}
	return s.view(battle)
}

// Forfeit ends an active battle; the other participant wins. Against an AI
// opponent the winner slot stays empty.
func (s *Service) Forfeit(ctx context.Context, battleID string, requesterID int64) (*View, error) {
	battle, err := s.load(ctx, battleID, requesterID)
	if err != nil {
		return nil, err
	}
	if !battle.IsActive() {
		return nil, fmt.Errorf("%w: battle %s is %s", apperr.ErrConflict, battleID, battle.Status)
	}

	var winnerID *int64
	if battle.Player1ID == requesterID {
		winnerID = battle.Player2ID
	} else {
		winnerID = &battle.Player1ID
	}

	// The forfeit entry is terminal on its own; battle_end is reserved for
	// knockouts.
	now := time.Now()
	log, err := appendLog(battle.BattleLog,
		LogEntry{Action: ActionForfeit, PlayerID: requesterID, Message: "forfeited the battle", Turn: battle.CurrentTurn, At: now},
	)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":       model.BattleStatusCompleted,
		"winner_id":    winnerID,
		"completed_at": now,
		"battle_log":   log,
	}
	res := s.db.WithContext(ctx).Model(&model.BattleState{}).
		Where("battle_id = ? AND status = ?", battleID, model.BattleStatusActive).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: battle %s already ended", apperr.ErrConflict, battleID)
	}

	battle.Status = model.BattleStatusCompleted
	battle.WinnerID = winnerID
	battle.CompletedAt = &now
	battle.BattleLog = log
	s.recordOutcome(ctx, battle, now)
	return s.view(battle)
}

// Attack resolves one attack by the acting player. Against an AI opponent
// the AI counterattacks in the same turn. The guarded update on status and
// current_turn keeps concurrent actions race-free.
func (s *Service) Attack(ctx context.Context, battleID string, requesterID int64) (*View, error) {
	battle, err := s.load(ctx, battleID, requesterID)
	if err != nil {
		return nil, err
	}
	if !battle.IsActive() {
		return nil, fmt.Errorf("%w: battle %s is %s", apperr.ErrConflict, battleID, battle.Status)
	}
	if battle.TurnPlayerID != requesterID {
		return nil, fmt.Errorf("%w: not player %d's turn", apperr.ErrConflict, requesterID)
	}

	db := s.db.WithContext(ctx)
	attackerSiblon, defenderSiblon, err := s.loadCombatants(db, battle, requesterID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var entries []LogEntry
	actingAsPlayer1 := battle.Player1ID == requesterID

	damage := s.rollDamage(attackerStats(attackerSiblon), defenderStats(defenderSiblon, attackerSiblon))
	if actingAsPlayer1 {
		battle.Player2HP = clampHP(battle.Player2HP - damage)
	} else {
		battle.Player1HP = clampHP(battle.Player1HP - damage)
	}
	entries = append(entries, LogEntry{
		Action:   ActionAttack,
		PlayerID: requesterID,
		Message:  fmt.Sprintf("attacked for %d damage", damage),
		Damage:   damage,
		Turn:     battle.CurrentTurn,
		At:       now,
	})

	defenderDown := (actingAsPlayer1 && battle.Player2HP == 0) || (!actingAsPlayer1 && battle.Player1HP == 0)
	aiBattle := battle.BattleType != model.BattleTypePvP

	if !defenderDown && aiBattle {
		counter := s.rollDamage(aiAttack(attackerSiblon.Level), siblonStats{attack: attackerSiblon.Attack, defense: attackerSiblon.Defense})
		battle.Player1HP = clampHP(battle.Player1HP - counter)
		entries = append(entries, LogEntry{
			Action:  ActionAttack,
			Message: fmt.Sprintf("opponent attacked for %d damage", counter),
			Damage:  counter,
			Turn:    battle.CurrentTurn,
			At:      now,
		})
	}

	playerDown := battle.Player1HP == 0
	finished := defenderDown || playerDown

	prevTurn := battle.CurrentTurn
	updates := map[string]interface{}{
		"player1_hp": battle.Player1HP,
		"player2_hp": battle.Player2HP,
	}
	if finished {
		var winnerID *int64
		switch {
		case defenderDown && actingAsPlayer1:
			winnerID = &battle.Player1ID
		case defenderDown:
			winnerID = battle.Player2ID
		case playerDown:
			winnerID = battle.Player2ID
		}
		entries = append(entries, LogEntry{Action: ActionBattleEnd, Message: "battle over", Turn: battle.CurrentTurn, At: now})
		battle.Status = model.BattleStatusCompleted
		battle.WinnerID = winnerID
		battle.CompletedAt = &now
		updates["status"] = model.BattleStatusCompleted
		updates["winner_id"] = winnerID
		updates["completed_at"] = now
	} else {
		battle.CurrentTurn++
		if battle.BattleType == model.BattleTypePvP && battle.Player2ID != nil {
			if actingAsPlayer1 {
				battle.TurnPlayerID = *battle.Player2ID
			} else {
				battle.TurnPlayerID = battle.Player1ID
			}
		}
		updates["current_turn"] = battle.CurrentTurn
		updates["turn_player_id"] = battle.TurnPlayerID
	}

	log, err := appendLog(battle.BattleLog, entries...)
	if err != nil {
		return nil, err
	}
	battle.BattleLog = log
	updates["battle_log"] = log

	res := db.Model(&model.BattleState{}).
		Where("battle_id = ? AND status = ? AND current_turn = ?", battleID, model.BattleStatusActive, prevTurn).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: battle %s advanced concurrently", apperr.ErrConflict, battleID)
	}
	if finished {
		s.recordOutcome(ctx, battle, now)
	}
	return s.view(battle)
}

// recordOutcome bumps each human participant's daily win/loss counters once
// the battle has reached a terminal state. Counter upkeep is best-effort.
func (s *Service) recordOutcome(ctx context.Context, battle *model.BattleState, now time.Time) {
	participants := []int64{battle.Player1ID}
	if battle.Player2ID != nil {
		participants = append(participants, *battle.Player2ID)
	}
	day := now.Format("2006-01-02")
	for _, playerID := range participants {
		won := battle.WinnerID != nil && *battle.WinnerID == playerID
		activity := &model.DailyActivity{
			PlayerProfileID: playerID,
			ActivityDate:    day,
		}
		column := "battles_lost"
		if won {
			activity.BattlesWon = 1
			column = "battles_won"
		} else {
			activity.BattlesLost = 1
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "player_profile_id"}, {Name: "activity_date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				column: gorm.Expr(column + " + 1"),
			}),
		}).Create(activity).Error
		if err != nil {
			s.logger.Warn("daily battle counter update failed",
				zap.String("battle_id", battle.BattleID),
				zap.Int64("player_id", playerID),
				zap.Error(err))
		}
	}
}

// ListForPlayer returns a player's battles, newest first.
func (s *Service) ListForPlayer(ctx context.Context, playerID int64) ([]model.BattleState, error) {
	var battles []model.BattleState
	err := s.db.WithContext(ctx).
		Where("player1_id = ? OR player2_id = ?", playerID, playerID).
		Order("started_at DESC").
		Find(&battles).Error
	return battles, err
}

func (s *Service) load(ctx context.Context, battleID string, requesterID int64) (*model.BattleState, error) {
	var battle model.BattleState
	err := s.db.WithContext(ctx).Where("battle_id = ?", battleID).First(&battle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: battle %s", apperr.ErrNotFound, battleID)
	}
	if err != nil {
		return nil, err
	}
	if !battle.HasParticipant(requesterID) {
		return nil, fmt.Errorf("%w: player %d is not a participant", apperr.ErrForbidden, requesterID)
	}
	return &battle, nil
}

func (s *Service) loadCombatants(db *gorm.DB, battle *model.BattleState, requesterID int64) (attacker, defender *model.Siblon, err error) {
	var p1 model.Siblon
	if err := db.First(&p1, battle.Player1SiblonID).Error; err != nil {
		return nil, nil, err
	}
	var p2 *model.Siblon
	if battle.Player2SiblonID != nil {
		var loaded model.Siblon
		if err := db.First(&loaded, *battle.Player2SiblonID).Error; err != nil {
			return nil, nil, err
		}
		p2 = &loaded
	}
	if battle.Player1ID == requesterID {
		return &p1, p2, nil
	}
	return p2, &p1, nil
}

func (s *Service) view(battle *model.BattleState) (*View, error) {
	entries, err := DecodeLog(battle.BattleLog)
	if err != nil {
		return nil, err
	}
	return &View{Battle: battle, Log: entries}, nil
}

type siblonStats struct {
	attack  int
	defense int
}

func attackerStats(siblon *model.Siblon) siblonStats {
	return siblonStats{attack: siblon.Attack, defense: siblon.Defense}
}

// defenderStats returns the defending side's stats. When the defender slot
// has no siblon (AI opponent), stats derive from the attacker's level minus
// the handicap.
func defenderStats(defender, attacker *model.Siblon) siblonStats {
	if defender != nil {
		return siblonStats{attack: defender.Attack, defense: defender.Defense}
	}
	return aiAttack(attacker.Level)
}

func aiAttack(initiatorLevel int) siblonStats {
	level := initiatorLevel - aiLevelHandicap
	if level < 1 {
		level = 1
	}
	return siblonStats{
		attack:  aiBaseAttack + level*aiAttackPerLevel,
		defense: aiBaseDefense + level*aiDefensePerLevel,
	}
}

// rollDamage computes attack minus half defense plus a small random spread,
// never below the minimum.
func (s *Service) rollDamage(attacker, defender siblonStats) int {
	s.mu.Lock()
	variance := s.rng.Intn(damageRandomSpread)
	s.mu.Unlock()
	damage := attacker.attack - defender.defense/2 + variance
	if damage < minimumDamage {
		damage = minimumDamage
	}
	return damage
}

func clampHP(hp int) int {
	if hp < 0 {
		return 0
	}
	return hp
}
