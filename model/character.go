package model

import "time"

// Race identifiers. Stored as plain strings so new races don't need a migration.
const (
	RaceHuman    = "human"
	RaceSaiyan   = "saiyan"
	RaceNamekian = "namekian"
	RaceArcosian = "arcosian"
	RaceMajin    = "majin"
	RaceAndroid  = "android"
)

// Character represents a player's combatant.
//
// CurrentHealth and CurrentKi are nullable: nil means "unset" and resolves to
// the derived maximum at read time. ReleasePercent may exceed 100 or fall to 0.
type Character struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID      int64     `gorm:"index:idx_char_account;not null" json:"account_id"`
	Name           string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Race           string    `gorm:"size:16;not null" json:"race"`
	Strength       int       `gorm:"default:1" json:"strength"`
	Defense        int       `gorm:"default:1" json:"defense"`
	Agility        int       `gorm:"default:1" json:"agility"`
	Endurance      int       `gorm:"default:1" json:"endurance"`
	Control        int       `gorm:"default:1" json:"control"`
	BasePL         int64     `gorm:"default:1" json:"base_pl"`
	CurrentHealth  *int64    `json:"current_health"`
	CurrentKi      *int64    `json:"current_ki"`
	ReleasePercent float64   `gorm:"default:100" json:"release_percent"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
