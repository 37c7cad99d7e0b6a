package stats

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Op is a stat modifier operation.
type Op int

const (
	OpAdd Op = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpSet
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpSet:
		return "="
	}
	return "?"
}

// Modifier is a parsed stat modifier. Form rows store modifiers in the
// "op+magnitude" string notation; ParseModifier converts them once at the
// storage boundary so the engine only ever sees typed values.
type Modifier struct {
	Op    Op
	Value float64
}

// ParseModifier parses an "op+magnitude" string such as "*5", "+40", "-10",
// "/2" or "=30". A bare number is an addition. An empty string is the
// identity modifier (+0).
func ParseModifier(s string) (Modifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Modifier{Op: OpAdd, Value: 0}, nil
	}

	op := OpAdd
	rest := s
	switch s[0] {
	case '+':
		rest = s[1:]
	case '-':
		op = OpSubtract
		rest = s[1:]
	case '*':
		op = OpMultiply
		rest = s[1:]
	case '/':
		op = OpDivide
		rest = s[1:]
	case '=':
		op = OpSet
		rest = s[1:]
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return Modifier{}, fmt.Errorf("stats: malformed modifier %q", s)
	}
	if op == OpDivide && v == 0 {
		return Modifier{}, fmt.Errorf("stats: modifier %q divides by zero", s)
	}
	return Modifier{Op: op, Value: v}, nil
}

// Apply applies the modifier to a base value.
func (m Modifier) Apply(base float64) float64 {
	switch m.Op {
	case OpAdd:
		return base + m.Value
	case OpSubtract:
		return base - m.Value
	case OpMultiply:
		return base * m.Value
	case OpDivide:
		return base / m.Value
	case OpSet:
		return m.Value
	}
	return base
}

// ApplyInt applies the modifier to an integer stat, flooring the result and
// clamping at 1 so a harsh debuff cannot zero out a primary attribute.
func (m Modifier) ApplyInt(base int) int {
	v := int(math.Floor(m.Apply(float64(base))))
	if v < 1 {
		v = 1
	}
	return v
}

// Block is the five primary attributes as a unit.
type Block struct {
	Strength  int
	Defense   int
	Agility   int
	Endurance int
	Control   int
}

// ModSet holds one modifier per primary attribute.
type ModSet struct {
	Strength  Modifier
	Defense   Modifier
	Agility   Modifier
	Endurance Modifier
	Control   Modifier
}

// ParseModSet parses the five modifier strings of a form row.
// The first malformed string aborts the parse.
func ParseModSet(strength, defense, agility, endurance, control string) (ModSet, error) {
	var (
		ms  ModSet
		err error
	)
	if ms.Strength, err = ParseModifier(strength); err != nil {
		return ModSet{}, err
	}
	if ms.Defense, err = ParseModifier(defense); err != nil {
		return ModSet{}, err
	}
	if ms.Agility, err = ParseModifier(agility); err != nil {
		return ModSet{}, err
	}
	if ms.Endurance, err = ParseModifier(endurance); err != nil {
		return ModSet{}, err
	}
	if ms.Control, err = ParseModifier(control); err != nil {
		return ModSet{}, err
	}
	return ms, nil
}

// Apply returns the attribute block with every modifier applied.
func (ms ModSet) Apply(b Block) Block {
	return Block{
		Strength:  ms.Strength.ApplyInt(b.Strength),
		Defense:   ms.Defense.ApplyInt(b.Defense),
		Agility:   ms.Agility.ApplyInt(b.Agility),
		Endurance: ms.Endurance.ApplyInt(b.Endurance),
		Control:   ms.Control.ApplyInt(b.Control),
	}
}

// PercentOf converts a percentage into an absolute delta against a maximum.
// Used wherever percentage costs or drains resolve against a resource pool.
func PercentOf(max int64, percent float64) int64 {
	return int64(math.Floor(float64(max) * percent / 100))
}
