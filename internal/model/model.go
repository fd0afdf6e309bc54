// Package model builds the mixed-integer program for a spot allocation: one
// integer variable per allocation row counting the spots bought, an objective
// maximizing delivered rating, and banded spend constraints for the budget,
// commercial shares, channel shares and prime/non-prime splits.
//
// Models are created per request and carry their own variable namespace so
// that concurrent solves never share identifiers.
package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Kind tags the business rule a constraint enforces.
type Kind string

const (
	KindGlobalBudget      Kind = "global_budget"
	KindCommercialShare   Kind = "commercial_share"
	KindChannelShare      Kind = "channel_share"
	KindChannelSlotSplit  Kind = "channel_slot_split"
	KindChannelCommercial Kind = "channel_commercial_split"
	KindBonusChannel      Kind = "bonus_channel"
	KindBonusCommercial   Kind = "bonus_commercial"
)

// Variable is one non-negative integer decision variable.
type Variable struct {
	Name  string
	Lower int
	Upper int
}

// Term is a coefficient on a variable, addressed by its index in Model.Variables.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is Lower <= Σ Coef·x <= Upper. A constraint without terms comes
// from an empty scope and is always satisfied by construction.
type Constraint struct {
	Name  string
	Kind  Kind
	Scope string
	Terms []Term
	Lower float64
	Upper float64
	// ForcedZero marks constraints that pin every variable in scope to 0.
	ForcedZero bool
}

// Trivial reports whether the constraint has no variables.
func (c Constraint) Trivial() bool {
	return len(c.Terms) == 0
}

// Model is a maximization problem over integer variables.
type Model struct {
	Name        string
	Namespace   string
	Variables   []Variable
	Objective   []Term
	Constraints []Constraint
	// RowIndex maps each variable to the index of the row it was created for.
	RowIndex []int
}

// NewNamespace returns a fresh identifier usable inside variable names.
func NewNamespace() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func variableName(namespace string, i int) string {
	return fmt.Sprintf("x_%s_%d", namespace, i)
}

// Activity evaluates Σ Coef·x for c under values, indexed like Variables.
func (m *Model) Activity(c Constraint, values []int) float64 {
	sum := 0.0
	for _, t := range c.Terms {
		if t.Var < len(values) {
			sum += t.Coef * float64(values[t.Var])
		}
	}
	return sum
}

// ObjectiveValue evaluates the objective under values.
func (m *Model) ObjectiveValue(values []int) float64 {
	return m.Activity(Constraint{Terms: m.Objective}, values)
}

// Violation describes a constraint or bound that values break.
type Violation struct {
	Name     string
	Activity float64
	Lower    float64
	Upper    float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %.2f not in [%.2f, %.2f]", v.Name, v.Activity, v.Lower, v.Upper)
}

// Check returns every bound and constraint violated by values, allowing eps
// of slack for solver round-off.
func (m *Model) Check(values []int, eps float64) []Violation {
	var out []Violation
	for i, v := range m.Variables {
		x := 0
		if i < len(values) {
			x = values[i]
		}
		if x < v.Lower || x > v.Upper {
			out = append(out, Violation{Name: v.Name, Activity: float64(x), Lower: float64(v.Lower), Upper: float64(v.Upper)})
		}
	}
	for _, c := range m.Constraints {
		a := m.Activity(c, values)
		if a < c.Lower-eps || a > c.Upper+eps {
			out = append(out, Violation{Name: c.Name, Activity: a, Lower: c.Lower, Upper: c.Upper})
		}
	}
	return out
}

// Values converts a name keyed assignment to a slice indexed like Variables.
// Missing names count as 0.
func (m *Model) Values(assignment map[string]int) []int {
	values := make([]int, len(m.Variables))
	for i, v := range m.Variables {
		values[i] = assignment[v.Name]
	}
	return values
}

// ConstraintsOf returns the constraints of one kind.
func (m *Model) ConstraintsOf(kind Kind) []Constraint {
	var out []Constraint
	for _, c := range m.Constraints {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Band is the allowed range of a scoped spend.
type Band struct {
	Lower float64
	Upper float64
	// Zero forces every variable in scope to 0 instead of bounding the spend.
	Zero bool
}

// ToleranceBand returns [(fraction−tol)·base, (fraction+tol)·base] with the
// lower end clamped at 0, or a zero-forcing band when fraction is 0.
func ToleranceBand(fraction, tol, base float64) Band {
	if fraction == 0 {
		return Band{Zero: true}
	}
	return Band{
		Lower: math.Max(0, (fraction-tol)*base),
		Upper: (fraction + tol) * base,
	}
}

// RelativeBand returns [(1−tol)·target, (1+tol)·target], zero-forcing for a
// zero target.
func RelativeBand(target, tol float64) Band {
	if target == 0 {
		return Band{Zero: true}
	}
	return Band{
		Lower: math.Max(0, (1-tol)*target),
		Upper: (1 + tol) * target,
	}
}

// ConstraintSpec describes one banded spend constraint over the rows that
// match Scope.
type ConstraintSpec struct {
	Kind  Kind
	Name  string
	Scope func(i int) bool
	Band  Band
}
