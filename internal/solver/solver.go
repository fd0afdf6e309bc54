// Package solver submits models to an integer-programming backend under a
// wall-clock budget and classifies what comes back.
//
// Backends report a raw status and whatever assignment they hold. The
// Gateway turns that into an Outcome: a failure (infeasible, unbounded,
// undefined or no incumbent) or a success that is either proven optimal or
// only feasible because time ran out. Running out of time is detected from
// the backend's own signal and, independently, from measured elapsed time.
package solver

import (
	"context"
	"errors"
	"time"

	"github.com/iwvelando/mediaplan/internal/model"
)

// ErrBackend wraps failures to run a backend at all, as opposed to a
// backend that ran and found nothing.
var ErrBackend = errors.New("solver backend failed")

// RawStatus is the status vocabulary shared by backends.
type RawStatus string

const (
	RawOptimal    RawStatus = "Optimal"
	RawNotSolved  RawStatus = "Not Solved"
	RawInfeasible RawStatus = "Infeasible"
	RawUnbounded  RawStatus = "Unbounded"
	RawUndefined  RawStatus = "Undefined"
)

// Raw is what a backend returns for one solve.
type Raw struct {
	Status RawStatus
	// Values maps variable names to their values; nil means no value.
	Values map[string]*float64
	// TimeLimitReported is set when the backend says it stopped on time.
	TimeLimitReported bool
}

// Solver is an external integer-programming capability.
type Solver interface {
	Solve(ctx context.Context, m *model.Model, limit time.Duration) (Raw, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, m *model.Model, limit time.Duration) (Raw, error)

// Solve implements Solver.
func (f SolverFunc) Solve(ctx context.Context, m *model.Model, limit time.Duration) (Raw, error) {
	return f(ctx, m, limit)
}
