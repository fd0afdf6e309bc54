// Package report turns a solved assignment into the plan tables returned to
// callers: the per-row plan, per-commercial and per-channel summaries and
// overall totals.
//
// Aggregation is pure. Running it twice over the same inputs yields the same
// report, and all rounding happens on aggregated sums.
package report

import (
	"sort"

	"github.com/iwvelando/mediaplan/internal/model"
	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/iwvelando/mediaplan/internal/ratecard"
	"github.com/iwvelando/mediaplan/internal/solver"
	"github.com/iwvelando/mediaplan/pkg/mathutil"
)

// SolutionRow is an allocation row that received spots.
type SolutionRow struct {
	pricing.AllocationRow
	Spots       int     `json:"Spots"`
	TotalCost   float64 `json:"Total_Cost"`
	TotalRating float64 `json:"Total_Rating"`
}

// CommercialSummary totals one commercial across channels.
type CommercialSummary struct {
	CommercialIndex int           `json:"commercial_index"`
	TotalCost       float64       `json:"total_cost"`
	TotalRating     float64       `json:"total_rating"`
	CPRP            *float64      `json:"cprp"`
	Details         []SolutionRow `json:"details"`
}

// ChannelSummary totals one channel, split by prime and non-prime slots.
type ChannelSummary struct {
	Channel         string  `json:"Channel"`
	TotalCost       float64 `json:"Total_Cost"`
	CostPct         float64 `json:"% Cost"`
	TotalRating     float64 `json:"Total_Rating"`
	RatingPct       float64 `json:"% Rating"`
	PrimeCost       float64 `json:"Prime Cost"`
	NonPrimeCost    float64 `json:"Non-Prime Cost"`
	PrimeRating     float64 `json:"Prime Rating"`
	NonPrimeRating  float64 `json:"Non-Prime Rating"`
	PrimeCostPct    float64 `json:"Prime Cost %"`
	NonPrimeCostPct float64 `json:"Non-Prime Cost %"`
}

// Report is the result of a budget-share optimization.
type Report struct {
	Success               bool                `json:"success"`
	TotalCost             float64             `json:"total_cost"`
	TotalRating           float64             `json:"total_rating"`
	CPRP                  *float64            `json:"cprp"`
	CommercialsSummary    []CommercialSummary `json:"commercials_summary"`
	ChannelSummary        []ChannelSummary    `json:"channel_summary"`
	Rows                  []SolutionRow       `json:"df_result"`
	IsOptimal             bool                `json:"is_optimal"`
	FeasibleButNotOptimal bool                `json:"feasible_but_not_optimal"`
	SolverStatus          string              `json:"solver_status"`
	HitTimeLimit          bool                `json:"hit_time_limit"`
	Message               string              `json:"message,omitempty"`
}

// Failure is the report for an outcome without a usable assignment.
func Failure(o solver.Outcome) Report {
	return Report{
		Success:            false,
		SolverStatus:       o.SolverStatus,
		HitTimeLimit:       o.HitTimeLimit,
		Message:            o.Message(),
		CommercialsSummary: []CommercialSummary{},
		ChannelSummary:     []ChannelSummary{},
		Rows:               []SolutionRow{},
	}
}

// WithOutcome copies the solve classification onto r.
func (r Report) WithOutcome(o solver.Outcome) Report {
	r.IsOptimal = o.IsOptimal
	r.FeasibleButNotOptimal = o.FeasibleNotProven
	r.SolverStatus = o.SolverStatus
	r.HitTimeLimit = o.HitTimeLimit
	if !o.IsOptimal {
		r.Message = o.Message()
	}
	return r
}

// Aggregate builds a successful report from the rows m was built over and
// the assignment returned for it. Only commercials 0..numCommercials-1 are
// summarized.
func Aggregate(rows []pricing.AllocationRow, m *model.Model, assignment map[string]int, numCommercials int) Report {
	solved := solutionRows(rows, m, assignment)

	var totalCost, totalRating float64
	for _, r := range solved {
		totalCost += r.TotalCost
		totalRating += r.TotalRating
	}

	report := Report{
		Success:            true,
		TotalCost:          mathutil.Round(totalCost),
		TotalRating:        mathutil.Round(totalRating),
		CPRP:               cprp(totalCost, totalRating),
		CommercialsSummary: commercialSummaries(solved, numCommercials),
		ChannelSummary:     channelSummaries(solved, totalCost, totalRating),
		Rows:               make([]SolutionRow, len(solved)),
	}
	for i, r := range solved {
		report.Rows[i] = display(r)
	}
	return report
}

// solutionRows pairs variables with their rows and keeps those with spots,
// in row order. Totals are left unrounded.
func solutionRows(rows []pricing.AllocationRow, m *model.Model, assignment map[string]int) []SolutionRow {
	spots := make(map[int]int, len(m.Variables))
	for i, v := range m.Variables {
		n := assignment[v.Name]
		if n <= 0 {
			continue
		}
		row := i
		if i < len(m.RowIndex) {
			row = m.RowIndex[i]
		}
		spots[row] += n
	}

	out := make([]SolutionRow, 0, len(spots))
	for i, r := range rows {
		n, ok := spots[i]
		if !ok {
			continue
		}
		out = append(out, SolutionRow{
			AllocationRow: r,
			Spots:         n,
			TotalCost:     float64(n) * r.NCost,
			TotalRating:   float64(n) * r.NTVR,
		})
	}
	return out
}

func display(r SolutionRow) SolutionRow {
	r.Cost = mathutil.Round(r.Cost)
	r.TVR = mathutil.Round(r.TVR)
	r.NCost = mathutil.Round(r.NCost)
	r.NTVR = mathutil.Round(r.NTVR)
	r.TotalCost = mathutil.Round(r.TotalCost)
	r.TotalRating = mathutil.Round(r.TotalRating)
	return r
}

func cprp(cost, rating float64) *float64 {
	ratio := mathutil.Ratio(cost, rating)
	if ratio == nil {
		return nil
	}
	return mathutil.RoundPtr(ratio)
}

func slotOrder(slot string) int {
	switch {
	case ratecard.IsPrime(slot):
		return 0
	case ratecard.IsNonPrime(slot):
		return 1
	default:
		return 2
	}
}

func commercialSummaries(rows []SolutionRow, numCommercials int) []CommercialSummary {
	out := []CommercialSummary{}
	for c := 0; c < numCommercials; c++ {
		var details []SolutionRow
		var cost, rating float64
		for _, r := range rows {
			if r.Commercial != c {
				continue
			}
			details = append(details, display(r))
			cost += r.TotalCost
			rating += r.TotalRating
		}
		if len(details) == 0 {
			continue
		}
		sort.SliceStable(details, func(i, j int) bool {
			a, b := details[i], details[j]
			if a.Channel != b.Channel {
				return a.Channel < b.Channel
			}
			if oa, ob := slotOrder(a.Slot), slotOrder(b.Slot); oa != ob {
				return oa < ob
			}
			return a.Program < b.Program
		})
		out = append(out, CommercialSummary{
			CommercialIndex: c,
			TotalCost:       mathutil.Round(cost),
			TotalRating:     mathutil.Round(rating),
			CPRP:            cprp(cost, rating),
			Details:         details,
		})
	}
	return out
}

type channelTotals struct {
	cost, rating                float64
	primeCost, nonPrimeCost     float64
	primeRating, nonPrimeRating float64
}

func channelSummaries(rows []SolutionRow, totalCost, totalRating float64) []ChannelSummary {
	var order []string
	totals := map[string]*channelTotals{}
	for _, r := range rows {
		t, ok := totals[r.Channel]
		if !ok {
			t = &channelTotals{}
			totals[r.Channel] = t
			order = append(order, r.Channel)
		}
		t.cost += r.TotalCost
		t.rating += r.TotalRating
		switch {
		case ratecard.IsPrime(r.Slot):
			t.primeCost += r.TotalCost
			t.primeRating += r.TotalRating
		case ratecard.IsNonPrime(r.Slot):
			t.nonPrimeCost += r.TotalCost
			t.nonPrimeRating += r.TotalRating
		}
	}

	out := make([]ChannelSummary, 0, len(order))
	for _, ch := range order {
		t := totals[ch]
		out = append(out, ChannelSummary{
			Channel:         ch,
			TotalCost:       mathutil.Round(t.cost),
			CostPct:         mathutil.Round(mathutil.CalculatePercentage(t.cost, totalCost)),
			TotalRating:     mathutil.Round(t.rating),
			RatingPct:       mathutil.Round(mathutil.CalculatePercentage(t.rating, totalRating)),
			PrimeCost:       mathutil.Round(t.primeCost),
			NonPrimeCost:    mathutil.Round(t.nonPrimeCost),
			PrimeRating:     mathutil.Round(t.primeRating),
			NonPrimeRating:  mathutil.Round(t.nonPrimeRating),
			PrimeCostPct:    mathutil.Round(mathutil.CalculatePercentage(t.primeCost, t.cost)),
			NonPrimeCostPct: mathutil.Round(mathutil.CalculatePercentage(t.nonPrimeCost, t.cost)),
		})
	}
	return out
}
