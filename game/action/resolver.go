package action

import (
	"math"
	"math/rand"
)

// Attack type identifiers stored on pending attack rows.
const (
	TypePhysical = "physical"
	TypeKi       = "ki"
)

// Resolver computes attack and defense values. All randomness flows through
// the injected RNG so outcomes are reproducible under test.
type Resolver struct {
	rng *rand.Rand
}

// NewResolver creates a Resolver around the given RNG.
func NewResolver(rng *rand.Rand) *Resolver {
	return &Resolver{rng: rng}
}

// Actor is the attribute view the resolver works from: the acting
// character's post-form stats and current resources.
type Actor struct {
	EffectivePL int64
	Strength    int
	Defense     int
	Agility     int
	Endurance   int
	Control     int
	CurrentKi   int64
}

// AttackComputation is a computed, not-yet-resolved attack.
type AttackComputation struct {
	Type     string  `json:"type"`
	Damage   int64   `json:"damage"`
	Accuracy int64   `json:"accuracy"`
	KiCost   int64   `json:"ki_cost"`  // total ki price, effort included
	KiGain   int64   `json:"ki_gain"`  // from minimal effort
	SpentPct float64 `json:"spent_pct"` // ki spent as % of max ki, drives blowback
}

// DefenseComputation is a computed defensive value.
type DefenseComputation struct {
	Value  int64 `json:"value"`
	KiCost int64 `json:"ki_cost"`
	KiGain int64 `json:"ki_gain"`
}

// effortCharges validates effort and splits its ki delta into cost and gain.
func effortCharges(effort Effort, endurance int) (cost, gain int64, err error) {
	if !effort.Valid() {
		return 0, 0, ErrInvalidEffort
	}
	delta := effort.KiDelta(endurance)
	if delta > 0 {
		return delta, 0, nil
	}
	return 0, -delta, nil
}

// PhysicalAttack computes a physical strike.
// Damage is floor(effectivePL × (strength + additive) / 10) and accuracy is
// floor(effectivePL × (agility + accuracyMod) / 10), both scaled by one
// effort roll. The effort ki price is validated against current ki before
// anything is computed; a refused attack costs nothing.
func (r *Resolver) PhysicalAttack(a Actor, additive, accuracyMod float64, effort Effort) (AttackComputation, error) {
	cost, gain, err := effortCharges(effort, a.Endurance)
	if err != nil {
		return AttackComputation{}, err
	}
	if cost > a.CurrentKi {
		return AttackComputation{}, &InsufficientKiError{Required: cost, Available: a.CurrentKi}
	}

	roll := effort.Roll(r.rng)
	damage := int64(math.Floor(float64(a.EffectivePL) * (float64(a.Strength) + additive) / 10 * roll))
	accuracy := int64(math.Floor(float64(a.EffectivePL) * (float64(a.Agility) + accuracyMod) / 10 * roll))

	spentPct := 0.0
	if a.Endurance > 0 {
		spentPct = float64(cost) / float64(a.Endurance) * 100
	}
	return AttackComputation{
		Type:     TypePhysical,
		Damage:   damage,
		Accuracy: accuracy,
		KiCost:   cost,
		KiGain:   gain,
		SpentPct: spentPct,
	}, nil
}

// KiAttackCost derives the ki price of a ki attack multiplier:
// max(1, floor((multiplier−1) × 10 × 100 / control)).
func KiAttackCost(multiplier float64, control int) int64 {
	baseCost := (multiplier - 1) * 10
	cost := int64(math.Floor(baseCost * 100 / float64(control)))
	if cost < 1 {
		cost = 1
	}
	return cost
}

// KiAttack computes a ki blast. Damage is floor(effectivePL × 10 ×
// multiplier) scaled by the effort roll; the multiplier must be at least 1.1.
// The total ki price (attack cost plus effort cost) is validated up front.
func (r *Resolver) KiAttack(a Actor, multiplier float64, effort Effort) (AttackComputation, error) {
	if multiplier < 1.1 {
		return AttackComputation{}, ErrInvalidKiMultiplier
	}
	effortCost, gain, err := effortCharges(effort, a.Endurance)
	if err != nil {
		return AttackComputation{}, err
	}
	attackCost := KiAttackCost(multiplier, a.Control)
	total := attackCost + effortCost
	if total > a.CurrentKi {
		return AttackComputation{}, &InsufficientKiError{Required: total, Available: a.CurrentKi}
	}

	roll := effort.Roll(r.rng)
	damage := int64(math.Floor(float64(a.EffectivePL) * 10 * multiplier * roll))
	accuracy := int64(math.Floor(float64(a.EffectivePL) * float64(a.Agility) / 10 * roll))

	spentPct := 0.0
	if a.Endurance > 0 {
		spentPct = float64(total) / float64(a.Endurance) * 100
	}
	return AttackComputation{
		Type:     TypeKi,
		Damage:   damage,
		Accuracy: accuracy,
		KiCost:   total,
		KiGain:   gain,
		SpentPct: spentPct,
	}, nil
}

// MultiplierIntervals validates a multiplicative block/dodge modifier and
// returns how many 0.5 intervals above 1.0 it spans. Valid values start at
// 1.5 and climb in 0.5 steps.
func MultiplierIntervals(multiplier float64) (int, error) {
	if multiplier < 1.5 {
		return 0, ErrInvalidMultiplier
	}
	steps := (multiplier - 1.0) / 0.5
	rounded := math.Round(steps)
	if math.Abs(steps-rounded) > 1e-9 {
		return 0, ErrInvalidMultiplier
	}
	return int(rounded), nil
}

// MultiplierKiCost prices a multiplicative modifier: each 0.5 interval costs
// max(1, floor(5 × 100 / control)).
func MultiplierKiCost(intervals int, control int) int64 {
	per := int64(math.Floor(5 * 100 / float64(control)))
	if per < 1 {
		per = 1
	}
	return int64(intervals) * per
}

// defenseValue computes floor(effectivePL × (stat + additive)/10 × roll) or
// the multiplicative variant floor(effectivePL × stat/10 × multiplier × roll).
func defenseValue(effectivePL int64, stat int, additive, multiplier, roll float64) int64 {
	if multiplier > 0 {
		return int64(math.Floor(float64(effectivePL) * float64(stat) / 10 * multiplier * roll))
	}
	return int64(math.Floor(float64(effectivePL) * (float64(stat) + additive) / 10 * roll))
}

// Block computes a physical block from the defense stat. Pass multiplier 0
// for an additive modifier; a non-zero multiplier is validated and priced
// per interval before the effort price is considered.
func (r *Resolver) Block(a Actor, additive, multiplier float64, effort Effort) (DefenseComputation, error) {
	return r.defend(a, a.Defense, additive, multiplier, effort)
}

// Dodge computes a dodge value from the agility stat, with the same modifier
// and pricing rules as Block.
func (r *Resolver) Dodge(a Actor, additive, multiplier float64, effort Effort) (DefenseComputation, error) {
	return r.defend(a, a.Agility, additive, multiplier, effort)
}

func (r *Resolver) defend(a Actor, stat int, additive, multiplier float64, effort Effort) (DefenseComputation, error) {
	effortCost, gain, err := effortCharges(effort, a.Endurance)
	if err != nil {
		return DefenseComputation{}, err
	}
	var modCost int64
	if multiplier > 0 {
		intervals, err := MultiplierIntervals(multiplier)
		if err != nil {
			return DefenseComputation{}, err
		}
		modCost = MultiplierKiCost(intervals, a.Control)
	}
	total := modCost + effortCost
	if total > a.CurrentKi {
		return DefenseComputation{}, &InsufficientKiError{Required: total, Available: a.CurrentKi}
	}

	roll := effort.Roll(r.rng)
	return DefenseComputation{
		Value:  defenseValue(a.EffectivePL, stat, additive, multiplier, roll),
		KiCost: total,
		KiGain: gain,
	}, nil
}

// Outcome is a resolved attack-versus-defense result.
type Outcome struct {
	Evaded    bool  `json:"evaded"`
	Damage    int64 `json:"damage"`
	PityBlock int64 `json:"pity_block"`
}

// ResolveDodge pits a dodge value against the attack. A winning dodge takes
// zero damage; a failed one still shaves off a pity block of
// floor(defenseValue × U(0.5, 0.6)).
func (r *Resolver) ResolveDodge(attackDamage, attackAccuracy, dodgeValue, defenseValue int64) Outcome {
	if dodgeValue > attackAccuracy {
		return Outcome{Evaded: true}
	}
	pity := int64(math.Floor(float64(defenseValue) * (0.5 + r.rng.Float64()*0.1)))
	damage := attackDamage - pity
	if damage < 0 {
		damage = 0
	}
	return Outcome{Damage: damage, PityBlock: pity}
}

// ResolveBlock subtracts the block value from the attack damage, floored at
// zero. Blocks cannot evade; they only absorb.
func ResolveBlock(attackDamage, blockValue int64) Outcome {
	damage := attackDamage - blockValue
	if damage < 0 {
		damage = 0
	}
	return Outcome{Damage: damage}
}

// BlowbackFraction maps the percentage of the endurance pool spent on a ki
// attack to the fraction of dealt damage returned to the attacker.
func BlowbackFraction(spentPct float64) float64 {
	switch {
	case spentPct >= 100:
		return 1.5
	case spentPct >= 75:
		return 0.7
	case spentPct >= 50:
		return 0.3
	case spentPct >= 25:
		return 0.1
	default:
		return 0
	}
}

// Blowback computes the self-inflicted damage after a ki attack dealt the
// given damage.
func Blowback(dealtDamage int64, spentPct float64) int64 {
	return int64(math.Floor(float64(dealtDamage) * BlowbackFraction(spentPct)))
}
