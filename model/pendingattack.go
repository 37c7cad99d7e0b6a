package model

import (
	"time"

	"gorm.io/datatypes"
)

// PendingAttack is an attack awaiting a defensive response. At most one live
// row exists per (channel, attacker, target); a newer attack from the same
// attacker against the same target replaces the old row. Rows past ExpiresAt
// resolve as full, undefended damage during the sweep.
type PendingAttack struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Channel        string         `gorm:"index:idx_pending_key,priority:1;size:64;not null" json:"channel"`
	AttackerUserID int64          `gorm:"index:idx_pending_key,priority:2;not null" json:"attacker_user_id"`
	TargetUserID   int64          `gorm:"index:idx_pending_key,priority:3;not null" json:"target_user_id"`
	TargetCharID   int64          `gorm:"not null" json:"target_char_id"`
	AttackType     string         `gorm:"size:24;not null" json:"attack_type"`
	Damage         int64          `gorm:"not null" json:"damage"`
	Accuracy       int64          `gorm:"not null" json:"accuracy"`
	Metadata       datatypes.JSON `json:"metadata"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt      time.Time      `gorm:"index:idx_pending_expiry;not null" json:"expires_at"`
}
