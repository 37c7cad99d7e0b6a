package model

import (
	"time"

	"gorm.io/datatypes"
)

// CombatState holds per-(character, channel) combat bonuses. Created lazily on
// the first combat interaction in a channel and cleared when combat there ends.
//
// ZenkaiPercent is a percentage of base PL; MajinMagicBonus is an absolute
// flat PL amount. Callers must not confuse the two when feeding the effective
// power calculator.
type CombatState struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID     int64     `gorm:"uniqueIndex:idx_combat_char_channel,priority:1;not null" json:"character_id"`
	Channel         string    `gorm:"uniqueIndex:idx_combat_char_channel,priority:2;size:64;not null" json:"channel"`
	ZenkaiPercent   float64   `gorm:"default:0" json:"zenkai_percent"`
	MajinMagicBonus int64     `gorm:"default:0" json:"majin_magic_bonus"`
	LastHitPL       int64     `gorm:"default:0" json:"last_hit_pl"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TechniqueEffect is a timed stat effect applied by a technique in a channel.
// TurnsLeft decrements during the end-of-turn pass; the row is removed at zero.
type TechniqueEffect struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID int64          `gorm:"index:idx_tech_char;not null" json:"character_id"`
	Channel     string         `gorm:"index:idx_tech_channel;size:64;not null" json:"channel"`
	Name        string         `gorm:"size:64;not null" json:"name"`
	Modifiers   datatypes.JSON `json:"modifiers"`
	TurnsLeft   int            `gorm:"default:1" json:"turns_left"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
