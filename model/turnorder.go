package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Participant is one entry in a turn order's participant list.
type Participant struct {
	UserID        int64  `json:"user_id"`
	DisplayName   string `json:"display_name"`
	CharacterName string `json:"character_name"`
	CharacterID   int64  `json:"character_id"`
}

// TurnOrder tracks whose turn it is in a combat channel.
// CurrentTurn is a zero-based index into Participants; CurrentRound is
// one-based and increments each time the pointer wraps.
type TurnOrder struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Channel      string         `gorm:"uniqueIndex;size:64;not null" json:"channel"`
	Participants datatypes.JSON `json:"participants"`
	CurrentTurn  int            `gorm:"default:0" json:"current_turn"`
	CurrentRound int            `gorm:"default:1" json:"current_round"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// ParticipantList decodes the JSON participant column.
func (t *TurnOrder) ParticipantList() ([]Participant, error) {
	if len(t.Participants) == 0 {
		return nil, nil
	}
	var out []Participant
	if err := json.Unmarshal(t.Participants, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetParticipants encodes the participant list into the JSON column.
func (t *TurnOrder) SetParticipants(list []Participant) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	t.Participants = datatypes.JSON(raw)
	return nil
}
