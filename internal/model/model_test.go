package model

import (
	"errors"
	"testing"

	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 {
	return &v
}

func row(ch, slot string, commercial int, ncost, ntvr float64) Row {
	return Row{
		Channel:    &ch,
		Program:    ch + "-" + slot,
		Slot:       &slot,
		Commercial: &commercial,
		NCost:      &ncost,
		NTVR:       &ntvr,
	}
}

func twoChannelRows() []Row {
	return []Row{
		row("DERANA", "A", 0, 100000, 5),
		row("DERANA", "B", 0, 40000, 2),
		row("SIRASA", "A", 0, 80000, 4),
		row("SIRASA", "B", 0, 20000, 1),
	}
}

func baseParams() Params {
	return Params{
		Budget:       1000000,
		BudgetBound:  50000,
		MinSpots:     0,
		MaxSpots:     20,
		BudgetShares: map[string]float64{"DERANA": 60, "SIRASA": 40},
		PrimePct:     fp(80),
		NonPrimePct:  fp(20),
	}
}

func findConstraint(t *testing.T, m *Model, name string) Constraint {
	t.Helper()
	for _, c := range m.Constraints {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("constraint %s not found", name)
	return Constraint{}
}

func TestBuildVariablesAndObjective(t *testing.T) {
	m, err := Build(twoChannelRows(), baseParams())
	require.NoError(t, err)

	require.Len(t, m.Variables, 4)
	require.Len(t, m.Objective, 4)
	for i, v := range m.Variables {
		assert.Equal(t, 0, v.Lower)
		assert.Equal(t, 20, v.Upper)
		assert.Contains(t, v.Name, m.Namespace)
		assert.Equal(t, i, m.RowIndex[i])
	}
	assert.Equal(t, 5.0, m.Objective[0].Coef)
	assert.Equal(t, 1.0, m.Objective[3].Coef)
}

func TestBuildNamespacesAreUnique(t *testing.T) {
	a, err := Build(twoChannelRows(), baseParams())
	require.NoError(t, err)
	b, err := Build(twoChannelRows(), baseParams())
	require.NoError(t, err)
	assert.NotEqual(t, a.Namespace, b.Namespace)
	assert.NotEqual(t, a.Variables[0].Name, b.Variables[0].Name)

	p := baseParams()
	p.Namespace = "req42"
	c, err := Build(twoChannelRows(), p)
	require.NoError(t, err)
	assert.Equal(t, "x_req42_0", c.Variables[0].Name)
}

func TestBuildBudgetAndChannelBands(t *testing.T) {
	m, err := Build(twoChannelRows(), baseParams())
	require.NoError(t, err)

	total := findConstraint(t, m, "total_budget")
	assert.Equal(t, KindGlobalBudget, total.Kind)
	assert.Len(t, total.Terms, 4)
	assert.InDelta(t, 950000, total.Lower, 1e-6)
	assert.InDelta(t, 1050000, total.Upper, 1e-6)

	derana := findConstraint(t, m, "channel_DERANA")
	assert.InDelta(t, 570000, derana.Lower, 1e-6)
	assert.InDelta(t, 630000, derana.Upper, 1e-6)
	assert.Len(t, derana.Terms, 2)

	prime := findConstraint(t, m, "prime_DERANA")
	assert.Equal(t, KindChannelSlotSplit, prime.Kind)
	assert.InDelta(t, 450000, prime.Lower, 1e-6)
	assert.InDelta(t, 510000, prime.Upper, 1e-6)
	require.Len(t, prime.Terms, 1)
	assert.Equal(t, 0, prime.Terms[0].Var)
	assert.Equal(t, 100000.0, prime.Terms[0].Coef)

	nonPrime := findConstraint(t, m, "nonprime_SIRASA")
	assert.InDelta(t, 0.15*400000, nonPrime.Lower, 1e-6)
	assert.InDelta(t, 0.25*400000, nonPrime.Upper, 1e-6)
}

func TestBuildCommercialShares(t *testing.T) {
	rows := append(twoChannelRows(),
		row("DERANA", "A", 1, 100000, 5),
		row("SIRASA", "B", 1, 20000, 1),
	)
	p := baseParams()
	p.BudgetProportions = []float64{70, 30, 99}

	m, err := Build(rows, p)
	require.NoError(t, err)

	shares := m.ConstraintsOf(KindCommercialShare)
	require.Len(t, shares, 2, "proportions beyond the commercial count are ignored")
	assert.InDelta(t, 650000, shares[0].Lower, 1e-6)
	assert.InDelta(t, 750000, shares[0].Upper, 1e-6)
	assert.Len(t, shares[0].Terms, 4)
	assert.InDelta(t, 250000, shares[1].Lower, 1e-6)
	assert.InDelta(t, 350000, shares[1].Upper, 1e-6)
	assert.Len(t, shares[1].Terms, 2)
}

func TestBuildZeroShareForcesVariablesToZero(t *testing.T) {
	rows := append(twoChannelRows(), row("DERANA", "A", 1, 100000, 5))
	p := baseParams()
	p.MinSpots = 1
	p.BudgetProportions = []float64{100, 0}

	m, err := Build(rows, p)
	require.NoError(t, err)

	c := findConstraint(t, m, "commercial_1")
	assert.True(t, c.ForcedZero)
	assert.Zero(t, c.Lower)
	assert.Zero(t, c.Upper)
	require.Len(t, c.Terms, 1)
	assert.Equal(t, 4, c.Terms[0].Var)
	assert.Equal(t, Variable{Name: m.Variables[4].Name, Lower: 0, Upper: 0}, m.Variables[4])
	assert.Equal(t, 1, m.Variables[0].Lower)
}

func TestBuildZeroChannelShare(t *testing.T) {
	p := baseParams()
	p.BudgetShares = map[string]float64{"DERANA": 100, "SIRASA": 0}

	m, err := Build(twoChannelRows(), p)
	require.NoError(t, err)

	c := findConstraint(t, m, "channel_SIRASA")
	assert.True(t, c.ForcedZero)
	assert.Zero(t, m.Variables[2].Upper)
	assert.Zero(t, m.Variables[3].Upper)
	for _, c := range m.ConstraintsOf(KindChannelSlotSplit) {
		assert.NotContains(t, c.Scope, "SIRASA", "a zero channel has no split constraints")
	}
}

func TestBuildEmptyScopeIsTrivial(t *testing.T) {
	p := baseParams()
	p.BudgetShares = map[string]float64{"DERANA": 60, "SIRASA": 30, "HIRU": 10}

	m, err := Build(twoChannelRows(), p)
	require.NoError(t, err)

	hiru := findConstraint(t, m, "channel_HIRU")
	assert.True(t, hiru.Trivial())
	assert.Zero(t, hiru.Lower)
	assert.Greater(t, hiru.Upper, 0.0)
	assert.True(t, findConstraint(t, m, "prime_HIRU").Trivial())

	// a term-less constraint is satisfied by any assignment
	assert.Zero(t, m.Activity(hiru, []int{5, 5, 5, 5}))
}

func TestBuildChannelCommercialSplit(t *testing.T) {
	rows := []Row{
		row("DERANA", "A", 0, 100000, 5),
		row("DERANA", "A", 1, 100000, 5),
		row("DERANA", "B", 0, 40000, 2),
		row("SIRASA", "A", 0, 80000, 4),
		row("SIRASA", "A", 1, 80000, 4),
	}
	p := baseParams()
	p.ChannelCommercialPct = map[string][]float64{"DERANA": {100, 0}}
	p.BudgetProportions = []float64{50, 50}

	m, err := Build(rows, p)
	require.NoError(t, err)

	splits := m.ConstraintsOf(KindChannelCommercial)
	require.Len(t, splits, 4)

	d0 := findConstraint(t, m, "channel_DERANA_commercial_0")
	assert.InDelta(t, 0.95*600000, d0.Lower, 1e-6)
	assert.InDelta(t, 1.05*600000, d0.Upper, 1e-6)
	assert.Len(t, d0.Terms, 2)

	d1 := findConstraint(t, m, "channel_DERANA_commercial_1")
	assert.True(t, d1.ForcedZero)
	assert.Zero(t, m.Variables[1].Upper)

	s1 := findConstraint(t, m, "channel_SIRASA_commercial_1")
	assert.InDelta(t, 0.45*400000, s1.Lower, 1e-6, "falls back to the global proportion")
}

func TestBuildSchemaErrors(t *testing.T) {
	noCost := twoChannelRows()
	noCost[1].NCost = nil

	noChannel := twoChannelRows()
	for i := range noChannel {
		noChannel[i].Channel = nil
		noChannel[i].Slot = nil
	}

	tests := []struct {
		name string
		rows []Row
		want string
	}{
		{"empty table", nil, "row table is empty"},
		{"missing NCost", noCost, "NCost"},
		{"missing Channel and Slot", noChannel, "Channel, Slot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.rows, baseParams())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchema))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildConfigErrors(t *testing.T) {
	noCommercial := twoChannelRows()
	noCommercial[0].Commercial = nil

	tests := []struct {
		name   string
		rows   []Row
		mutate func(*Params)
	}{
		{"split without commercial column", noCommercial, func(p *Params) { p.ChannelCommercialPct = map[string][]float64{} }},
		{"proportions without commercial column", noCommercial, func(p *Params) { p.BudgetProportions = []float64{100} }},
		{"zero budget", twoChannelRows(), func(p *Params) { p.Budget = 0 }},
		{"inverted spot bounds", twoChannelRows(), func(p *Params) { p.MinSpots, p.MaxSpots = 5, 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams()
			tt.mutate(&p)
			_, err := Build(tt.rows, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
		})
	}
}

func TestFromAllocation(t *testing.T) {
	rows := FromAllocation([]pricing.AllocationRow{
		{Channel: "DERANA", Slot: "A", Program: "News", Commercial: 1, CommercialKey: "com_2", NCost: 10, NTVR: 2},
		{Channel: "SIRASA", Slot: "B", Program: "Talk", Commercial: 0, CommercialKey: "com_1", NCost: 5, NTVR: 1},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "DERANA", *rows[0].Channel)
	assert.Equal(t, 1, *rows[0].Commercial)
	assert.Equal(t, 10.0, *rows[0].NCost)
	assert.Equal(t, "SIRASA", *rows[1].Channel)
	assert.Equal(t, 0, *rows[1].Commercial)
}

func TestCheckReportsViolations(t *testing.T) {
	m, err := Build(twoChannelRows(), baseParams())
	require.NoError(t, err)

	violations := m.Check([]int{0, 0, 0, 0}, 1e-6)
	names := make([]string, 0, len(violations))
	for _, v := range violations {
		names = append(names, v.Name)
	}
	assert.Contains(t, names, "total_budget")
	assert.Contains(t, names, "channel_DERANA")

	over := m.Check([]int{21, 0, 0, 0}, 1e-6)
	assert.Equal(t, m.Variables[0].Name, over[0].Name)
}

func TestToleranceBand(t *testing.T) {
	assert.Equal(t, Band{Zero: true}, ToleranceBand(0, 0.05, 1000))
	small := ToleranceBand(0.02, 0.05, 1000)
	assert.Zero(t, small.Lower, "lower end is clamped at zero")
	assert.InDelta(t, 70, small.Upper, 1e-9)
	b := ToleranceBand(0.6, 0.05, 1000)
	assert.InDelta(t, 550, b.Lower, 1e-9)
	assert.InDelta(t, 650, b.Upper, 1e-9)

	assert.Equal(t, Band{Zero: true}, RelativeBand(0, 0.1))
	r := RelativeBand(1000, 0.1)
	assert.InDelta(t, 900, r.Lower, 1e-9)
	assert.InDelta(t, 1100, r.Upper, 1e-9)
}
