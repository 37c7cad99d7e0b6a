package action

import (
	"errors"
	"fmt"
)

// ErrInvalidMultiplier rejects multiplicative block/dodge modifiers that are
// below 1.5 or off the 0.5 grid.
var ErrInvalidMultiplier = errors.New("action: multiplier must be at least 1.5 and land on 0.5 steps")

// ErrInvalidKiMultiplier rejects ki attack multipliers below 1.1.
var ErrInvalidKiMultiplier = errors.New("action: ki attack multiplier must be at least 1.1")

// ErrInvalidEffort rejects effort levels outside 1–5.
var ErrInvalidEffort = errors.New("action: effort must be between 1 and 5")

// ErrPromptExpired is returned when a follow-up input arrives after the
// bounded wait has elapsed. No state was mutated.
var ErrPromptExpired = errors.New("action: input prompt expired")

// InsufficientKiError rejects an action whose ki price exceeds the pool.
// The action is refused before any mutation.
type InsufficientKiError struct {
	Required  int64
	Available int64
}

func (e *InsufficientKiError) Error() string {
	return fmt.Sprintf("action: insufficient ki: need %d, have %d", e.Required, e.Available)
}
