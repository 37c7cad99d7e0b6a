package pool

import "math"

// Pools describes a character's derived resource caps for one combat reading:
// post-form base PL multiplier, post-form endurance, and the racial flags
// that soften depletion penalties.
type Pools struct {
	BasePL         int64
	FormMultiplier float64 // 0 treated as 1
	Endurance      int     // post form modifier
	HumanSpirit    bool    // halves the health-driven ki cap reduction
}

func (p Pools) formMult() float64 {
	if p.FormMultiplier == 0 {
		return 1
	}
	return p.FormMultiplier
}

// MaxHealth is floor(basePL × formMultiplier × endurance).
func (p Pools) MaxHealth() int64 {
	return int64(math.Floor(float64(p.BasePL) * p.formMult() * float64(p.Endurance)))
}

// MaxKi equals the post-form endurance stat.
func (p Pools) MaxKi() int64 {
	return int64(p.Endurance)
}

// HealthPercent converts a current health value into a percentage of max.
func (p Pools) HealthPercent(current int64) float64 {
	max := p.MaxHealth()
	if max <= 0 {
		return 0
	}
	return float64(current) / float64(max) * 100
}

// KiPercent converts a current ki value into a percentage of max.
// May exceed 100 when a prior excess has not been spent yet.
func (p Pools) KiPercent(current int64) float64 {
	max := p.MaxKi()
	if max <= 0 {
		return 0
	}
	return float64(current) / float64(max) * 100
}

// KiCap computes the ki ceiling for the given health percentage. An injured
// body channels less ki: the cap shrinks linearly with missing health, halved
// for Human Spirit, and never drops below 1.
func (p Pools) KiCap(healthPercent float64) int64 {
	max := p.MaxKi()
	if healthPercent >= 100 {
		return max
	}
	if healthPercent < 0 {
		healthPercent = 0
	}
	reduction := (100 - healthPercent) / 100
	if p.HumanSpirit {
		reduction /= 2
	}
	cap := int64(math.Round(float64(max) * (1 - reduction)))
	if cap < 1 {
		cap = 1
	}
	return cap
}

// ClampHealth clamps a health value to the pool maximum. Negative health is
// permitted: it signals defeat.
func (p Pools) ClampHealth(health int64) int64 {
	if max := p.MaxHealth(); health > max {
		return max
	}
	return health
}

// ClampKi clamps a ki value into [0, cap] for the given current health.
func (p Pools) ClampKi(ki, currentHealth int64) int64 {
	if ki < 0 {
		return 0
	}
	cap := p.KiCap(p.HealthPercent(currentHealth))
	if ki > cap {
		return cap
	}
	return ki
}

// EnforceKiCap re-clamps current ki after an event that may have lowered the
// cap. It only ever moves ki downward: a recovered cap never refunds ki.
func (p Pools) EnforceKiCap(currentKi, currentHealth int64) int64 {
	cap := p.KiCap(p.HealthPercent(currentHealth))
	if currentKi > cap {
		return cap
	}
	if currentKi < 0 {
		return 0
	}
	return currentKi
}

// State is a mutable (health, ki) pair governed by a Pools definition.
// Every mutation re-clamps both resources.
type State struct {
	Pools  Pools
	Health int64
	Ki     int64
}

// NewState returns a state at full pools.
func NewState(p Pools) *State {
	return &State{Pools: p, Health: p.MaxHealth(), Ki: p.MaxKi()}
}

// ApplyHealthDelta adds delta to health (negative = damage), clamps, then
// enforces the ki cap the new health implies.
func (s *State) ApplyHealthDelta(delta int64) {
	s.Health = s.Pools.ClampHealth(s.Health + delta)
	s.Ki = s.Pools.EnforceKiCap(s.Ki, s.Health)
}

// ApplyKiDelta adds delta to ki (negative = cost) and clamps to [0, cap].
func (s *State) ApplyKiDelta(delta int64) {
	s.Ki = s.Pools.ClampKi(s.Ki+delta, s.Health)
}

// SpendKi deducts amount if available, reporting whether the deduction
// happened. Spending is all-or-nothing; a failed spend mutates nothing.
func (s *State) SpendKi(amount int64) bool {
	if amount > s.Ki {
		return false
	}
	s.Ki -= amount
	return true
}

// Defeated reports whether health has dropped to zero or below.
func (s *State) Defeated() bool {
	return s.Health <= 0
}
