package power

import "math"

// Ki-depletion debuff schedule. Each "point" is one percent of max ki lost;
// deeper depletion costs progressively more effective power.
const (
	tier1Points = 49   // first 49 lost points
	tier1Rate   = 0.5  // percent debuff per point
	tier2Points = 30   // next 30
	tier2Rate   = 0.75 //
	tier3Points = 10   // next 10
	tier3Rate   = 1.0  //
	tier4Rate   = 1.5  // every further point
	debuffCap   = 87.5 // total debuff ceiling, percent
)

// Input bundles everything the effective power calculation folds together.
//
// ZenkaiPercent is a percentage of base PL; MajinMagicBonus is an absolute
// flat PL amount. ReleasePercent is applied verbatim: a fully suppressed
// character (release 0) has zero effective power, and callers resolving at
// full release pass 100.
type Input struct {
	BasePL          int64
	KiPercent       float64 // current ki as a percentage of max ki; may exceed 100
	FormMultiplier  float64 // 0 treated as 1
	HalveKiDebuff   bool    // Arcosian Resilience
	ZenkaiPercent   float64
	MajinMagicBonus int64
	ReleasePercent  float64
}

// KiDebuffPercent computes the tiered debuff from ki depletion.
// Ki at or above 100% yields no debuff.
func KiDebuffPercent(kiPercent float64) float64 {
	lost := 100 - kiPercent
	if lost <= 0 {
		return 0
	}

	debuff := 0.0
	take := func(points, rate float64) {
		if lost <= 0 {
			return
		}
		p := math.Min(lost, points)
		debuff += p * rate
		lost -= p
	}
	take(tier1Points, tier1Rate)
	take(tier2Points, tier2Rate)
	take(tier3Points, tier3Rate)
	if lost > 0 {
		debuff += lost * tier4Rate
	}

	return math.Min(debuff, debuffCap)
}

// Effective computes the comparable combat strength for one character state.
// Deterministic and side-effect free; every damage and accuracy roll starts
// from this number.
func Effective(in Input) int64 {
	formMult := in.FormMultiplier
	if formMult == 0 {
		formMult = 1
	}

	debuff := KiDebuffPercent(in.KiPercent)
	if in.HalveKiDebuff {
		debuff /= 2
	}

	formAdjusted := float64(in.BasePL) * formMult
	racialAdjusted := formAdjusted +
		float64(in.BasePL)*in.ZenkaiPercent/100 +
		float64(in.MajinMagicBonus)

	released := racialAdjusted * in.ReleasePercent / 100

	effective := math.Floor(released * (1 - debuff/100))
	if effective < 0 {
		return 0
	}
	return int64(effective)
}
