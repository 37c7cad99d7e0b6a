package model

// RacialAbility attaches a racial trait tag to a character. Passive traits
// (Arcosian Resilience, Human Spirit) stay active permanently; toggleable
// sub-states (enhanced Majin Regeneration, Namekian Giant Form) flip IsActive
// through player commands. Tag constants live in game/racial.
type RacialAbility struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID int64  `gorm:"uniqueIndex:idx_char_racial,priority:1;not null" json:"character_id"`
	Tag         string `gorm:"uniqueIndex:idx_char_racial,priority:2;size:48;not null" json:"tag"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
}
