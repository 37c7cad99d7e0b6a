package power

import (
	"math"
	"testing"
)

func TestKiDebuffPercentFullKi(t *testing.T) {
	if got := KiDebuffPercent(100); got != 0 {
		t.Errorf("debuff at 100%% ki = %f, want 0", got)
	}
	if got := KiDebuffPercent(150); got != 0 {
		t.Errorf("debuff above 100%% ki = %f, want 0", got)
	}
}

func TestKiDebuffPercentTiers(t *testing.T) {
	cases := []struct {
		kiPercent float64
		want      float64
	}{
		{99, 0.5},   // 1 point in tier 1
		{51, 24.5},  // all 49 tier-1 points
		{50, 25.25}, // 49×0.5 + 1×0.75
		{21, 47.0},  // 49×0.5 + 30×0.75
		{11, 57.0},  // + 10×1.0
		{1, 72.0},   // + 10×1.5 (99 points lost)
		{0, 73.5},   // 100 points lost
	}
	for _, c := range cases {
		got := KiDebuffPercent(c.kiPercent)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("KiDebuffPercent(%v) = %v, want %v", c.kiPercent, got, c.want)
		}
	}
}

func TestKiDebuffMonotone(t *testing.T) {
	prev := -1.0
	for ki := 100; ki >= 0; ki-- {
		d := KiDebuffPercent(float64(ki))
		if d < prev {
			t.Fatalf("debuff decreased at ki=%d: %f < %f", ki, d, prev)
		}
		if d > 87.5 {
			t.Fatalf("debuff exceeds cap at ki=%d: %f", ki, d)
		}
		prev = d
	}
}

func TestEffectiveBaseline(t *testing.T) {
	got := Effective(Input{BasePL: 1000, KiPercent: 100, FormMultiplier: 1, ReleasePercent: 100})
	if got != 1000 {
		t.Errorf("Effective = %d, want 1000", got)
	}
}

func TestEffectiveHalfKi(t *testing.T) {
	// debuff = 49×0.5 + 1×0.75 = 25.25% → floor(1000 × 0.7475) = 747
	got := Effective(Input{BasePL: 1000, KiPercent: 50, FormMultiplier: 1, ReleasePercent: 100})
	if got != 747 {
		t.Errorf("Effective = %d, want 747", got)
	}
}

func TestEffectiveResilienceHalvesDebuff(t *testing.T) {
	// 25.25% halved → 12.625% → floor(1000 × 0.87375) = 873
	got := Effective(Input{BasePL: 1000, KiPercent: 50, HalveKiDebuff: true, ReleasePercent: 100})
	if got != 873 {
		t.Errorf("Effective = %d, want 873", got)
	}
}

func TestEffectiveFormMultiplier(t *testing.T) {
	got := Effective(Input{BasePL: 1000, KiPercent: 100, FormMultiplier: 5, ReleasePercent: 100})
	if got != 5000 {
		t.Errorf("Effective = %d, want 5000", got)
	}
}

func TestEffectiveRacialBonuses(t *testing.T) {
	// zenkai 10% of base + flat 500 on top of ×2 form
	got := Effective(Input{
		BasePL:          1000,
		KiPercent:       100,
		FormMultiplier:  2,
		ZenkaiPercent:   10,
		MajinMagicBonus: 500,
		ReleasePercent:  100,
	})
	if got != 2600 {
		t.Errorf("Effective = %d, want 2600", got)
	}
}

func TestEffectiveRelease(t *testing.T) {
	got := Effective(Input{BasePL: 1000, KiPercent: 100, ReleasePercent: 50})
	if got != 500 {
		t.Errorf("Effective at 50%% release = %d, want 500", got)
	}
	got = Effective(Input{BasePL: 1000, KiPercent: 100, ReleasePercent: 120})
	if got != 1200 {
		t.Errorf("Effective at 120%% release = %d, want 1200", got)
	}
	got = Effective(Input{BasePL: 1000, KiPercent: 100, ReleasePercent: 0})
	if got != 0 {
		t.Errorf("Effective fully suppressed = %d, want 0", got)
	}
}

func TestEffectiveNeverNegative(t *testing.T) {
	got := Effective(Input{BasePL: 0, KiPercent: 0, ReleasePercent: 100})
	if got != 0 {
		t.Errorf("Effective = %d, want 0", got)
	}
}

func TestEffectiveDefaultsMultiplier(t *testing.T) {
	// zero form multiplier means "no form", not "annihilate the character"
	got := Effective(Input{BasePL: 1234, KiPercent: 100, ReleasePercent: 100})
	if got != 1234 {
		t.Errorf("Effective = %d, want 1234", got)
	}
}
