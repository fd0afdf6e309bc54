// Package planner runs one plan request end to end: normalize the rate card
// rows, build the model, solve it and aggregate the result.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/mediaplan/internal/model"
	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/iwvelando/mediaplan/internal/ratecard"
	"github.com/iwvelando/mediaplan/internal/report"
	"github.com/iwvelando/mediaplan/internal/solver"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"go.uber.org/zap"
)

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid plan request")

// IsInputError reports whether err was caused by the request rather than the
// system serving it.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest,
		pricing.ErrMissingInput,
		pricing.ErrNoMatchingRows,
		pricing.ErrInvalidDuration,
		model.ErrSchema,
		model.ErrConfig,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Defaults fill in request fields the caller left out.
type Defaults struct {
	MinSpots    int     `mapstructure:"minSpots" yaml:"minSpots"`
	MaxSpots    int     `mapstructure:"maxSpots" yaml:"maxSpots"`
	BudgetBound float64 `mapstructure:"budgetBound" yaml:"budgetBound"`
	PrimePct    float64 `mapstructure:"primePct" yaml:"primePct"`
	NonPrimePct float64 `mapstructure:"nonPrimePct" yaml:"nonPrimePct"`
}

// Config is the planner configuration.
type Config struct {
	TimeLimit time.Duration
	Defaults  Defaults
	// Rules and ChannelDiscounts apply to requests that bring none.
	Rules            pricing.Rules
	ChannelDiscounts map[string]float64
}

// OptimizeRequest is a budget-share optimization. Exactly one of Table and
// Programs is used; Table wins when it has rows.
type OptimizeRequest struct {
	Table    Table
	Programs *pricing.Request

	Budget            float64
	BudgetBound       *float64
	MinSpots          *int
	MaxSpots          *int
	NumCommercials    int
	BudgetProportions []float64
	BudgetShares      map[string]float64

	PrimePct                    *float64
	NonPrimePct                 *float64
	ChannelDefaultPrimePct      *float64
	ChannelDefaultNonPrimePct   *float64
	ChannelPrimePct             map[string]float64
	ChannelNonPrimePct          map[string]float64
	ChannelCommercialPct        map[string][]float64
	ChannelCommercialDefaultPct []float64

	TimeLimit time.Duration
}

// BonusRequest is a bonus airtime optimization over non-prime rows.
type BonusRequest struct {
	Rows                []pricing.AllocationRow
	Channels            []string
	BonusBudgets        map[string]float64
	AllowPct            map[string]float64
	DefaultAllowPct     float64
	CommercialTargets   map[string]map[string]float64
	CommercialTolerance float64
	MaxSpots            int
	TimeLimit           time.Duration
}

// Planner owns the plan pipeline. It holds no per-request state and is safe
// for concurrent use.
type Planner struct {
	logger     *zap.Logger
	store      ratecard.Store
	normalizer *pricing.Normalizer
	gateway    *solver.Gateway
	cfg        Config
}

// New returns a Planner reading programs from store and solving on gateway.
func New(logger *zap.Logger, store ratecard.Store, gateway *solver.Gateway, cfg Config) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = constants.DefaultTimeLimit
	}
	if cfg.Defaults.MaxSpots == 0 {
		cfg.Defaults.MaxSpots = constants.DefaultMaxSpots
	}
	if cfg.Defaults.PrimePct == 0 && cfg.Defaults.NonPrimePct == 0 {
		cfg.Defaults.PrimePct = constants.DefaultPrimePct
		cfg.Defaults.NonPrimePct = constants.DefaultNonPrimePct
	}
	return &Planner{
		logger:     logger,
		store:      store,
		normalizer: pricing.NewNormalizer(logger, store),
		gateway:    gateway,
		cfg:        cfg,
	}
}

// Channels lists the channels in the rate card.
func (p *Planner) Channels(ctx context.Context) ([]string, error) {
	return p.store.Channels(ctx)
}

// Programs lists the programs of one channel.
func (p *Planner) Programs(ctx context.Context, channel string) ([]ratecard.Program, error) {
	if channel == "" {
		return nil, fmt.Errorf("%w: channel is required", ErrInvalidRequest)
	}
	return p.store.ProgramsByChannel(ctx, channel)
}

// GenerateRows normalizes programs into allocation rows without solving.
func (p *Planner) GenerateRows(ctx context.Context, req pricing.Request) ([]pricing.AllocationRow, error) {
	return p.normalizer.Normalize(ctx, p.withRules(req))
}

func (p *Planner) withRules(req pricing.Request) pricing.Request {
	if req.Rules.DefaultDiscountPct == nil {
		req.Rules.DefaultDiscountPct = p.cfg.Rules.DefaultDiscountPct
	}
	if req.Rules.Client == "" {
		req.Rules.Client = p.cfg.Rules.Client
	}
	if req.Rules.ClientChannels == nil {
		req.Rules.ClientChannels = p.cfg.Rules.ClientChannels
	}
	if req.Rules.NetCostChannels == nil {
		req.Rules.NetCostChannels = p.cfg.Rules.NetCostChannels
	}
	if len(p.cfg.ChannelDiscounts) > 0 {
		merged := make(map[string]float64, len(p.cfg.ChannelDiscounts)+len(req.ChannelDiscounts))
		for ch, pct := range p.cfg.ChannelDiscounts {
			merged[ch] = pct
		}
		for ch, pct := range req.ChannelDiscounts {
			merged[ch] = pct
		}
		req.ChannelDiscounts = merged
	}
	return req
}

// Optimize runs a budget-share optimization. Solver failures come back as a
// report with Success false; the error is reserved for bad input and for a
// backend that could not run.
func (p *Planner) Optimize(ctx context.Context, req OptimizeRequest) (report.Report, error) {
	table := req.Table
	if table.Len() == 0 && req.Programs != nil {
		rows, err := p.GenerateRows(ctx, *req.Programs)
		if err != nil {
			return report.Report{}, err
		}
		table = NewTable(rows)
	}
	if table.Len() == 0 {
		return report.Report{}, fmt.Errorf("%w: df_full is empty", ErrInvalidRequest)
	}

	params := p.params(req, table)
	m, err := model.Build(table.Model, params)
	if err != nil {
		return report.Report{}, err
	}

	limit := req.TimeLimit
	if limit <= 0 {
		limit = p.cfg.TimeLimit
	}
	outcome, err := p.gateway.Solve(ctx, m, limit)
	if err != nil {
		return report.Report{}, err
	}
	if !outcome.Success() {
		p.logger.Warn("optimization found no plan",
			zap.String("op", "planner.Optimize"),
			zap.String("status", string(outcome.Status)),
			zap.String("solverStatus", outcome.SolverStatus),
		)
		return report.Failure(outcome), nil
	}

	result := report.Aggregate(table.Rows, m, outcome.Assignment, params.NumCommercials).WithOutcome(outcome)
	p.logger.Info("optimization complete",
		zap.String("op", "planner.Optimize"),
		zap.Int("rows", table.Len()),
		zap.Int("planned", len(result.Rows)),
		zap.Float64("totalCost", result.TotalCost),
		zap.Float64("totalRating", result.TotalRating),
		zap.Bool("optimal", result.IsOptimal),
	)
	return result, nil
}

func (p *Planner) params(req OptimizeRequest, table Table) model.Params {
	d := p.cfg.Defaults
	params := model.Params{
		Budget:                      req.Budget,
		BudgetBound:                 valueOr(req.BudgetBound, d.BudgetBound),
		MinSpots:                    valueOr(req.MinSpots, d.MinSpots),
		MaxSpots:                    valueOr(req.MaxSpots, d.MaxSpots),
		NumCommercials:              req.NumCommercials,
		BudgetProportions:           req.BudgetProportions,
		BudgetShares:                req.BudgetShares,
		PrimePct:                    req.PrimePct,
		NonPrimePct:                 req.NonPrimePct,
		ChannelDefaultPrimePct:      req.ChannelDefaultPrimePct,
		ChannelDefaultNonPrimePct:   req.ChannelDefaultNonPrimePct,
		ChannelPrimePct:             req.ChannelPrimePct,
		ChannelNonPrimePct:          req.ChannelNonPrimePct,
		ChannelCommercialPct:        req.ChannelCommercialPct,
		ChannelCommercialDefaultPct: req.ChannelCommercialDefaultPct,
	}
	// Each side of the global split falls back on its own.
	if params.PrimePct == nil {
		prime := d.PrimePct
		params.PrimePct = &prime
	}
	if params.NonPrimePct == nil {
		nonPrime := d.NonPrimePct
		params.NonPrimePct = &nonPrime
	}
	if params.NumCommercials == 0 {
		params.NumCommercials = countCommercials(table)
	}
	return params
}

// OptimizeBonus runs a bonus airtime optimization.
func (p *Planner) OptimizeBonus(ctx context.Context, req BonusRequest) (report.BonusReport, error) {
	if len(req.Channels) == 0 {
		return report.BonusReport{}, fmt.Errorf("%w: no channels provided", ErrInvalidRequest)
	}
	if len(req.Rows) == 0 {
		return report.BonusReport{}, fmt.Errorf("%w: no programRows provided", ErrInvalidRequest)
	}

	maxSpots := req.MaxSpots
	if maxSpots == 0 {
		maxSpots = p.cfg.Defaults.MaxSpots
	}
	m, err := model.BuildBonus(model.FromAllocation(req.Rows), model.BonusParams{
		Channels:            req.Channels,
		BonusBudgets:        req.BonusBudgets,
		AllowPct:            req.AllowPct,
		DefaultAllowPct:     req.DefaultAllowPct,
		CommercialTargets:   req.CommercialTargets,
		CommercialTolerance: req.CommercialTolerance,
		MaxSpots:            maxSpots,
	})
	if err != nil {
		return report.BonusReport{}, err
	}

	limit := req.TimeLimit
	if limit <= 0 {
		limit = p.cfg.TimeLimit
	}
	outcome, err := p.gateway.Solve(ctx, m, limit)
	if err != nil {
		return report.BonusReport{}, err
	}
	if !outcome.Success() {
		p.logger.Warn("bonus optimization found no plan",
			zap.String("op", "planner.OptimizeBonus"),
			zap.String("status", string(outcome.Status)),
		)
		return report.BonusFailure(outcome), nil
	}

	result := report.AggregateBonus(req.Rows, m, outcome.Assignment, req.Channels, outcome)
	p.logger.Info("bonus optimization complete",
		zap.String("op", "planner.OptimizeBonus"),
		zap.Int("rows", len(req.Rows)),
		zap.Float64("totalCost", result.Totals.BonusTotalCost),
	)
	return result, nil
}

func countCommercials(t Table) int {
	n := 0
	for _, r := range t.Model {
		if r.Commercial != nil && *r.Commercial+1 > n {
			n = *r.Commercial + 1
		}
	}
	return n
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
