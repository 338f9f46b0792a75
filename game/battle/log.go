package battle

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Log entry actions. Each entry kind carries the same fixed field set so the
// log stays machine-checkable.
const (
	ActionBattleStart = "battle_start"
	ActionAttack      = "attack"
	ActionForfeit     = "forfeit"
	ActionBattleEnd   = "battle_end"
)

// LogEntry is one immutable battle log record. Log order is the sole source
// of battle history.
type LogEntry struct {
	Action   string    `json:"action"`
	PlayerID int64     `json:"player_id"`
	Message  string    `json:"message"`
	Damage   int       `json:"damage,omitempty"`
	Turn     int       `json:"turn,omitempty"`
	At       time.Time `json:"at"`
}

// DecodeLog parses a stored battle log column.
func DecodeLog(raw datatypes.JSON) ([]LogEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []LogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// appendLog returns the log column with entries appended.
func appendLog(raw datatypes.JSON, entries ...LogEntry) (datatypes.JSON, error) {
	existing, err := DecodeLog(raw)
	if err != nil {
		return nil, err
	}
	existing = append(existing, entries...)
	data, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
