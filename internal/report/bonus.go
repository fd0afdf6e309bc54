package report

import (
	"github.com/iwvelando/mediaplan/internal/model"
	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/iwvelando/mediaplan/internal/solver"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"github.com/iwvelando/mediaplan/pkg/mathutil"
)

// BonusProgramRow is one bonus row that received spots.
type BonusProgramRow struct {
	Channel     string  `json:"Channel"`
	Program     string  `json:"Program"`
	Commercial  string  `json:"Commercial"`
	Duration    float64 `json:"Duration"`
	Spots       int     `json:"Spots"`
	Cost        float64 `json:"Cost"`
	TVR         float64 `json:"TVR"`
	NCost       float64 `json:"NCost"`
	NTVR        float64 `json:"NTVR"`
	TotalCost   float64 `json:"Total_Cost"`
	TotalRating float64 `json:"Total_Rating"`
	Slot        string  `json:"Slot"`
}

// BonusChannelRow totals one requested channel.
type BonusChannelRow struct {
	Channel     string  `json:"Channel"`
	Slot        string  `json:"Slot"`
	Spots       int     `json:"Spots"`
	TotalCost   float64 `json:"Total_Cost"`
	TotalRating float64 `json:"Total_Rating"`
}

// BonusTables groups the bonus plan tables.
type BonusTables struct {
	ByProgram []BonusProgramRow `json:"by_program"`
	ByChannel []BonusChannelRow `json:"by_channel"`
}

// BonusTotals are the plan wide bonus sums.
type BonusTotals struct {
	BonusTotalCost   float64 `json:"bonus_total_cost"`
	BonusTotalRating float64 `json:"bonus_total_rating"`
}

// BonusReport is the result of a bonus airtime optimization.
type BonusReport struct {
	Success      bool         `json:"success"`
	SolverStatus string       `json:"solver_status"`
	Tables       *BonusTables `json:"tables,omitempty"`
	Totals       *BonusTotals `json:"totals,omitempty"`
	IsOptimal    bool         `json:"is_optimal"`
	HitTimeLimit bool         `json:"hit_time_limit"`
	Note         string       `json:"note,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// BonusFailure is the bonus report for an outcome without an assignment.
func BonusFailure(o solver.Outcome) BonusReport {
	return BonusReport{
		Success:      false,
		SolverStatus: o.SolverStatus,
		HitTimeLimit: o.HitTimeLimit,
		Message:      o.Message(),
	}
}

// AggregateBonus builds the bonus tables. Channels are reported in the
// requested order, including those that received nothing.
func AggregateBonus(rows []pricing.AllocationRow, m *model.Model, assignment map[string]int, channels []string, o solver.Outcome) BonusReport {
	solved := solutionRows(rows, m, assignment)

	type sums struct {
		spots        int
		cost, rating float64
	}
	byChannel := map[string]*sums{}
	tables := &BonusTables{ByProgram: []BonusProgramRow{}, ByChannel: []BonusChannelRow{}}
	var totalCost, totalRating float64

	for _, r := range solved {
		s, ok := byChannel[r.Channel]
		if !ok {
			s = &sums{}
			byChannel[r.Channel] = s
		}
		s.spots += r.Spots
		s.cost += r.TotalCost
		s.rating += r.TotalRating
		totalCost += r.TotalCost
		totalRating += r.TotalRating

		tables.ByProgram = append(tables.ByProgram, BonusProgramRow{
			Channel:     r.Channel,
			Program:     r.Program,
			Commercial:  r.CommercialKey,
			Duration:    r.Duration,
			Spots:       r.Spots,
			Cost:        mathutil.Round(r.NCost),
			TVR:         mathutil.Round(r.NTVR),
			NCost:       mathutil.Round(r.NCost),
			NTVR:        mathutil.Round(r.NTVR),
			TotalCost:   mathutil.Round(r.TotalCost),
			TotalRating: mathutil.Round(r.TotalRating),
			Slot:        constants.SlotNonPrime,
		})
	}

	for _, ch := range channels {
		row := BonusChannelRow{Channel: ch, Slot: constants.SlotNonPrime}
		if s, ok := byChannel[ch]; ok {
			row.Spots = s.spots
			row.TotalCost = mathutil.Round(s.cost)
			row.TotalRating = mathutil.Round(s.rating)
		}
		tables.ByChannel = append(tables.ByChannel, row)
	}

	report := BonusReport{
		Success:      true,
		SolverStatus: o.SolverStatus,
		Tables:       tables,
		Totals: &BonusTotals{
			BonusTotalCost:   mathutil.Round(totalCost),
			BonusTotalRating: mathutil.Round(totalRating),
		},
		IsOptimal:    o.IsOptimal,
		HitTimeLimit: o.HitTimeLimit,
	}
	if !o.IsOptimal {
		report.Note = o.Message()
	}
	return report
}
