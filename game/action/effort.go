package action

import (
	"math"
	"math/rand"
)

// Effort is the 1–5 dial trading roll variance and ki cost for an action's
// outcome. Level 2 is the resting default: full range of ordinary rolls at
// no ki price.
type Effort int

const (
	EffortMinimal  Effort = 1
	EffortCasual   Effort = 2
	EffortSerious  Effort = 3
	EffortIntense  Effort = 4
	EffortAllOut   Effort = 5
	DefaultEffort         = EffortCasual
)

// effortRange is the multiplier interval rolled per level.
var effortRange = map[Effort][2]float64{
	EffortMinimal: {0.4, 0.6},
	EffortCasual:  {0.7, 1.0},
	EffortSerious: {0.8, 1.0},
	EffortIntense: {0.9, 1.0},
	EffortAllOut:  {0.95, 1.2},
}

// effortKiPercent is the ki cost as a percentage of the endurance stat.
// Negative means the character recovers ki by holding back.
var effortKiPercent = map[Effort]float64{
	EffortMinimal: -3,
	EffortCasual:  0,
	EffortSerious: 5,
	EffortIntense: 7,
	EffortAllOut:  10,
}

// Valid reports whether the effort level is in range.
func (e Effort) Valid() bool {
	return e >= EffortMinimal && e <= EffortAllOut
}

// Roll draws the random multiplier for this effort level.
func (e Effort) Roll(rng *rand.Rand) float64 {
	r := effortRange[e]
	return r[0] + rng.Float64()*(r[1]-r[0])
}

// KiDelta returns the signed ki change the effort level imposes, resolved
// against the endurance stat. Positive values are costs, negative are gains.
func (e Effort) KiDelta(endurance int) int64 {
	pct := effortKiPercent[e]
	if pct == 0 {
		return 0
	}
	amount := int64(math.Floor(math.Abs(pct) * float64(endurance) / 100))
	if amount < 1 {
		amount = 1
	}
	if pct < 0 {
		return -amount
	}
	return amount
}
