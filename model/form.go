package model

import "time"

// Form is a transformation definition. Stat modifiers are stored in the
// "op+magnitude" string notation ("*5", "+40", "-10") and parsed into typed
// modifiers by game/stats at the storage boundary.
type Form struct {
	ID           int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	FormKey      string  `gorm:"uniqueIndex;size:64;not null" json:"form_key"`
	Name         string  `gorm:"size:64;not null" json:"name"`
	StrengthMod  string  `gorm:"size:16" json:"strength_mod"`
	DefenseMod   string  `gorm:"size:16" json:"defense_mod"`
	AgilityMod   string  `gorm:"size:16" json:"agility_mod"`
	EnduranceMod string  `gorm:"size:16" json:"endurance_mod"`
	ControlMod   string  `gorm:"size:16" json:"control_mod"`
	PLMultiplier float64 `gorm:"default:1" json:"pl_multiplier"`

	// Activation costs. Percent costs resolve against the relevant maximum.
	KiCost              float64 `gorm:"default:0" json:"ki_cost"`
	KiCostIsPercent     bool    `gorm:"default:false" json:"ki_cost_is_percent"`
	HealthCost          float64 `gorm:"default:0" json:"health_cost"`
	HealthCostIsPercent bool    `gorm:"default:false" json:"health_cost_is_percent"`

	// Per-turn upkeep while active. Negative values regenerate.
	KiDrain        float64 `gorm:"default:0" json:"ki_drain"`
	HealthDrain    float64 `gorm:"default:0" json:"health_drain"`
	DrainIsPercent bool    `gorm:"default:false" json:"drain_is_percent"`

	// Stackable forms may coexist with another active form on the same
	// character (e.g. Kaioken layered on a Super Saiyan state).
	Stackable bool      `gorm:"default:false" json:"stackable"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CharacterForm joins a character to a form it has learned.
// At most one non-stackable form may be active per character; the transform
// operation enforces that, not the schema.
type CharacterForm struct {
	ID          int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID int64 `gorm:"uniqueIndex:idx_char_form,priority:1;not null" json:"character_id"`
	FormID      int64 `gorm:"uniqueIndex:idx_char_form,priority:2;not null" json:"form_id"`
	IsActive    bool  `gorm:"default:false" json:"is_active"`
}
