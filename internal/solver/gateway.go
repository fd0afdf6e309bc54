package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/iwvelando/mediaplan/internal/model"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"go.uber.org/zap"
)

// Status is the classified result of a solve.
type Status string

const (
	StatusOptimal           Status = "Optimal"
	StatusFeasibleNotProven Status = "FeasibleNotProven"
	StatusInfeasible        Status = "Infeasible"
	StatusUnbounded         Status = "Unbounded"
	StatusUndefined         Status = "Undefined"
	StatusNoIncumbent       Status = "NoIncumbent"
)

// Outcome is a classified solve.
type Outcome struct {
	Status Status
	// SolverStatus is the backend's raw status, reported as-is.
	SolverStatus      string
	Assignment        map[string]int
	IsOptimal         bool
	FeasibleNotProven bool
	HitTimeLimit      bool
	Elapsed           time.Duration
}

// Success reports whether the outcome carries a usable assignment.
func (o Outcome) Success() bool {
	return o.Status == StatusOptimal || o.Status == StatusFeasibleNotProven
}

// Message is a human readable explanation of a failed outcome.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusInfeasible, StatusUnbounded, StatusUndefined:
		return fmt.Sprintf("No feasible solution. Solver status: %s", o.SolverStatus)
	case StatusNoIncumbent:
		return "No feasible solution found (no incumbent)."
	case StatusFeasibleNotProven:
		return "Feasible plan found within the time limit (not proven optimal)."
	default:
		return ""
	}
}

// Gateway runs models on a backend.
type Gateway struct {
	logger    *zap.Logger
	backend   Solver
	threshold float64
	slack     time.Duration
	grace     time.Duration
	now       func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithThreshold sets the fraction of the limit after which elapsed time
// counts as having hit the limit.
func WithThreshold(fraction float64) Option {
	return func(g *Gateway) {
		if fraction > 0 && fraction <= 1 {
			g.threshold = fraction
		}
	}
}

// WithGrace sets how long past the limit the backend may run before its
// context is cancelled.
func WithGrace(grace time.Duration) Option {
	return func(g *Gateway) {
		if grace >= 0 {
			g.grace = grace
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway returns a Gateway over backend.
func NewGateway(logger *zap.Logger, backend Solver, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		logger:    logger,
		backend:   backend,
		threshold: constants.TimeLimitThreshold,
		slack:     constants.TimeLimitSlack,
		grace:     30 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Solve runs m with a wall-clock budget of limit (DefaultTimeLimit when
// zero). Solver-declared failures come back as an Outcome, not an error; an
// error means the backend could not be run.
func (g *Gateway) Solve(ctx context.Context, m *model.Model, limit time.Duration) (Outcome, error) {
	if m == nil {
		return Outcome{}, fmt.Errorf("%w: nil model", ErrBackend)
	}
	if limit <= 0 {
		limit = constants.DefaultTimeLimit
	}

	solveCtx, cancel := context.WithTimeout(ctx, limit+g.grace)
	defer cancel()

	start := g.now()
	raw, err := g.backend.Solve(solveCtx, m, limit)
	elapsed := g.now().Sub(start)
	if err != nil {
		g.logger.Error("solver backend failed",
			zap.String("op", "solver.Solve"),
			zap.String("model", m.Name),
			zap.String("namespace", m.Namespace),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return Outcome{}, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	hit := raw.TimeLimitReported || HitTimeLimit(elapsed, limit, g.threshold, g.slack)
	outcome := Classify(raw, m, hit)
	outcome.Elapsed = elapsed

	g.logger.Info("solver finished",
		zap.String("op", "solver.Solve"),
		zap.String("model", m.Name),
		zap.String("namespace", m.Namespace),
		zap.Int("variables", len(m.Variables)),
		zap.Int("constraints", len(m.Constraints)),
		zap.String("solverStatus", outcome.SolverStatus),
		zap.String("status", string(outcome.Status)),
		zap.Bool("hitTimeLimit", outcome.HitTimeLimit),
		zap.Duration("elapsed", elapsed),
		zap.Duration("limit", limit),
	)
	return outcome, nil
}

// HitTimeLimit reports whether elapsed is close enough to limit to assume
// the backend was cut off: elapsed ≥ max(limit − slack, threshold·limit).
func HitTimeLimit(elapsed, limit time.Duration, threshold float64, slack time.Duration) bool {
	if limit <= 0 {
		return false
	}
	cutoff := time.Duration(math.Max(float64(limit-slack), threshold*float64(limit)))
	return elapsed >= cutoff
}

// Classify maps a raw backend result to an Outcome. Priority: declared
// failures, then missing incumbent, then optimal or feasible-not-proven.
func Classify(raw Raw, m *model.Model, hitTimeLimit bool) Outcome {
	out := Outcome{
		SolverStatus: string(raw.Status),
		HitTimeLimit: hitTimeLimit,
	}
	switch raw.Status {
	case RawInfeasible:
		out.Status = StatusInfeasible
		return out
	case RawUnbounded:
		out.Status = StatusUnbounded
		return out
	case RawOptimal, RawNotSolved:
	default:
		out.Status = StatusUndefined
		return out
	}

	assignment, positive := roundAssignment(raw.Values, m)
	if !positive {
		out.Status = StatusNoIncumbent
		return out
	}

	out.Assignment = assignment
	out.IsOptimal = raw.Status == RawOptimal && !hitTimeLimit
	out.FeasibleNotProven = raw.Status == RawNotSolved || hitTimeLimit
	if out.IsOptimal {
		out.Status = StatusOptimal
	} else {
		out.Status = StatusFeasibleNotProven
	}
	return out
}

// roundAssignment rounds every model variable to the nearest integer (nil
// is 0) and reports whether any variable was positive.
func roundAssignment(values map[string]*float64, m *model.Model) (map[string]int, bool) {
	assignment := make(map[string]int, len(m.Variables))
	positive := false
	for _, v := range m.Variables {
		val := values[v.Name]
		if val == nil || math.IsNaN(*val) {
			assignment[v.Name] = 0
			continue
		}
		if *val > 0 {
			positive = true
		}
		n := int(math.Round(*val))
		if n < 0 {
			n = 0
		}
		assignment[v.Name] = n
	}
	return assignment, positive
}
