// Package testutil provides common utility functions for testing.
package testutil

import (
	"context"
	"time"

	"github.com/iwvelando/mediaplan/internal/model"
	"github.com/iwvelando/mediaplan/internal/report"
	"github.com/iwvelando/mediaplan/internal/solver"
)

// FindChannel finds a channel summary by name.
// Returns a pointer to the summary if found, nil otherwise.
func FindChannel(summaries []report.ChannelSummary, name string) *report.ChannelSummary {
	for i := range summaries {
		if summaries[i].Channel == name {
			return &summaries[i]
		}
	}
	return nil
}

// Enumerate returns the best feasible assignment of m by trying every
// combination within the variable bounds, or nil when none is feasible.
// Only usable on tiny models.
func Enumerate(m *model.Model) []int {
	values := make([]int, len(m.Variables))
	for i, v := range m.Variables {
		values[i] = v.Lower
	}
	var best []int
	bestObj := -1.0
	for {
		if len(m.Check(values, 1e-6)) == 0 {
			if obj := m.ObjectiveValue(values); obj > bestObj {
				bestObj = obj
				best = append(best[:0:0], values...)
			}
		}
		i := 0
		for ; i < len(values); i++ {
			if values[i] < m.Variables[i].Upper {
				values[i]++
				break
			}
			values[i] = m.Variables[i].Lower
		}
		if i == len(values) {
			return best
		}
	}
}

// ExhaustiveSolver solves with Enumerate and reports status for any model
// with a feasible assignment, Infeasible otherwise.
func ExhaustiveSolver(status solver.RawStatus) solver.Solver {
	return solver.SolverFunc(func(ctx context.Context, m *model.Model, limit time.Duration) (solver.Raw, error) {
		best := Enumerate(m)
		if best == nil {
			return solver.Raw{Status: solver.RawInfeasible}, nil
		}
		raw := solver.Raw{Status: status, Values: make(map[string]*float64, len(best))}
		for i, v := range m.Variables {
			x := float64(best[i])
			raw.Values[v.Name] = &x
		}
		return raw, nil
	})
}
