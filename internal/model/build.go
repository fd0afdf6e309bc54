package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/iwvelando/mediaplan/internal/ratecard"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"github.com/iwvelando/mediaplan/pkg/mathutil"
)

var (
	// ErrSchema is returned when the row table lacks a required column.
	ErrSchema = errors.New("missing columns in row table")
	// ErrConfig is returned for parameters the row table cannot support.
	ErrConfig = errors.New("invalid optimization parameters")
)

// Row is one candidate row as received by the builder. Pointer columns are
// nil when the column is absent from the table.
type Row struct {
	Channel       *string  `json:"Channel"`
	Program       string   `json:"Program"`
	Slot          *string  `json:"Slot"`
	Commercial    *int     `json:"Commercial"`
	CommercialKey string   `json:"Commercial_Key"`
	NCost         *float64 `json:"NCost"`
	NTVR          *float64 `json:"NTVR"`
}

func (r Row) channel() string {
	if r.Channel == nil {
		return ""
	}
	return *r.Channel
}

func (r Row) slot() string {
	if r.Slot == nil {
		return ""
	}
	return *r.Slot
}

func (r Row) ncost() float64 {
	if r.NCost == nil {
		return 0
	}
	return *r.NCost
}

func (r Row) ntvr() float64 {
	if r.NTVR == nil {
		return 0
	}
	return *r.NTVR
}

// FromAllocation converts normalized allocation rows to builder rows.
func FromAllocation(rows []pricing.AllocationRow) []Row {
	out := make([]Row, len(rows))
	for i := range rows {
		r := rows[i]
		out[i] = Row{
			Channel:       &r.Channel,
			Program:       r.Program,
			Slot:          &r.Slot,
			Commercial:    &r.Commercial,
			CommercialKey: r.CommercialKey,
			NCost:         &r.NCost,
			NTVR:          &r.NTVR,
		}
	}
	return out
}

// Params are the business rules of a budget-share optimization.
type Params struct {
	Budget      float64
	BudgetBound float64
	MinSpots    int
	MaxSpots    int

	// NumCommercials is the number of commercials; 0 derives it from the rows.
	NumCommercials int
	// BudgetProportions holds each commercial's share of the budget in percent.
	BudgetProportions []float64
	// BudgetShares holds each channel's share of the budget in percent.
	BudgetShares map[string]float64

	// PrimePct and NonPrimePct are the global prime/non-prime split.
	PrimePct    *float64
	NonPrimePct *float64
	// ChannelDefaultPrimePct and ChannelDefaultNonPrimePct apply to every
	// channel without its own split.
	ChannelDefaultPrimePct    *float64
	ChannelDefaultNonPrimePct *float64
	ChannelPrimePct           map[string]float64
	ChannelNonPrimePct        map[string]float64

	// ChannelCommercialPct holds per channel commercial splits in percent of
	// the channel budget. A nil map disables the family.
	ChannelCommercialPct map[string][]float64
	// ChannelCommercialDefaultPct is the split used by channels missing from
	// ChannelCommercialPct.
	ChannelCommercialDefaultPct []float64

	// Namespace scopes variable names; empty generates a fresh one.
	Namespace string
}

type builder struct {
	rows  []Row
	model *Model
}

// Build validates rows against params and assembles the model.
func Build(rows []Row, params Params) (*Model, error) {
	if err := checkSchema(rows); err != nil {
		return nil, err
	}
	if err := checkParams(rows, params); err != nil {
		return nil, err
	}

	ns := params.Namespace
	if ns == "" {
		ns = NewNamespace()
	}
	b := &builder{
		rows: rows,
		model: &Model{
			Name:      "Maximize_TVR_With_Channel_and_Slot_Budget_Shares",
			Namespace: ns,
		},
	}
	b.addVariables(params.MinSpots, params.MaxSpots)

	b.addBounded(ConstraintSpec{
		Kind:  KindGlobalBudget,
		Name:  "total_budget",
		Scope: func(int) bool { return true },
		Band: Band{
			Lower: params.Budget - params.BudgetBound,
			Upper: params.Budget + params.BudgetBound,
		},
	})

	numCommercials := params.NumCommercials
	if numCommercials == 0 {
		numCommercials = countCommercials(rows)
	}

	if len(params.BudgetProportions) > 0 {
		n := min(len(params.BudgetProportions), numCommercials)
		for c := 0; c < n; c++ {
			share := params.BudgetProportions[c] / constants.PercentageMultiplier
			b.addBounded(ConstraintSpec{
				Kind:  KindCommercialShare,
				Name:  fmt.Sprintf("commercial_%d", c),
				Scope: b.commercialScope(c),
				Band:  ToleranceBand(share, constants.ShareTolerance, params.Budget),
			})
		}
	}

	for _, ch := range sortedKeys(params.BudgetShares) {
		pct := params.BudgetShares[ch]
		chBudget := mathutil.ApplyPercentage(params.Budget, pct)
		inChannel := b.channelScope(ch)

		b.addBounded(ConstraintSpec{
			Kind:  KindChannelShare,
			Name:  "channel_" + ch,
			Scope: inChannel,
			Band:  RelativeBand(chBudget, constants.ShareTolerance),
		})
		if chBudget == 0 {
			continue
		}

		split := ResolveSlotSplit(ch, params)
		b.addBounded(ConstraintSpec{
			Kind: KindChannelSlotSplit,
			Name: "prime_" + ch,
			Scope: func(i int) bool {
				return inChannel(i) && ratecard.IsPrime(b.rows[i].slot())
			},
			Band: ToleranceBand(split.Prime/constants.PercentageMultiplier, constants.ShareTolerance, chBudget),
		})
		b.addBounded(ConstraintSpec{
			Kind: KindChannelSlotSplit,
			Name: "nonprime_" + ch,
			Scope: func(i int) bool {
				return inChannel(i) && ratecard.IsNonPrime(b.rows[i].slot())
			},
			Band: ToleranceBand(split.NonPrime/constants.PercentageMultiplier, constants.ShareTolerance, chBudget),
		})

		if params.ChannelCommercialPct == nil {
			continue
		}
		for c := 0; c < numCommercials; c++ {
			pct := ResolveChannelCommercialPct(ch, c, numCommercials, params)
			commercial := b.commercialScope(c)
			b.addBounded(ConstraintSpec{
				Kind:  KindChannelCommercial,
				Name:  fmt.Sprintf("channel_%s_commercial_%d", ch, c),
				Scope: func(i int) bool { return inChannel(i) && commercial(i) },
				Band:  ToleranceBand(pct.Pct/constants.PercentageMultiplier, constants.ShareTolerance, chBudget),
			})
		}
	}

	return b.model, nil
}

func (b *builder) addVariables(minSpots, maxSpots int) {
	m := b.model
	m.Variables = make([]Variable, len(b.rows))
	m.Objective = make([]Term, 0, len(b.rows))
	m.RowIndex = make([]int, len(b.rows))
	for i, r := range b.rows {
		m.Variables[i] = Variable{
			Name:  variableName(m.Namespace, i),
			Lower: minSpots,
			Upper: maxSpots,
		}
		m.RowIndex[i] = i
		m.Objective = append(m.Objective, Term{Var: i, Coef: r.ntvr()})
	}
}

// addBounded adds spec's constraint over the variables in scope. Empty scopes
// add a term-less constraint that is satisfied by 0. Zero bands pin every
// variable in scope to 0.
func (b *builder) addBounded(spec ConstraintSpec) {
	m := b.model
	var terms []Term
	var scoped []int
	for i := range m.Variables {
		if !spec.Scope(i) {
			continue
		}
		scoped = append(scoped, i)
		terms = append(terms, Term{Var: i, Coef: b.rows[m.RowIndex[i]].ncost()})
	}

	c := Constraint{
		Name:  sanitizeName(spec.Name),
		Kind:  spec.Kind,
		Scope: spec.Name,
		Lower: spec.Band.Lower,
		Upper: spec.Band.Upper,
	}

	switch {
	case len(scoped) == 0:
		c.Lower = 0
		c.Upper = max(spec.Band.Upper, 0)
	case spec.Band.Zero:
		c.ForcedZero = true
		c.Lower, c.Upper = 0, 0
		terms = terms[:0]
		for _, i := range scoped {
			m.Variables[i].Lower = 0
			m.Variables[i].Upper = 0
			terms = append(terms, Term{Var: i, Coef: 1})
		}
		c.Terms = terms
	default:
		c.Terms = terms
	}
	m.Constraints = append(m.Constraints, c)
}

func (b *builder) channelScope(ch string) func(int) bool {
	return func(i int) bool {
		return b.rows[b.model.RowIndex[i]].channel() == ch
	}
}

func (b *builder) commercialScope(c int) func(int) bool {
	return func(i int) bool {
		r := b.rows[b.model.RowIndex[i]]
		return r.Commercial != nil && *r.Commercial == c
	}
}

func checkSchema(rows []Row) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: row table is empty", ErrSchema)
	}
	missing := make(map[string]bool)
	channelSeen, slotSeen := false, false
	for _, r := range rows {
		if r.NCost == nil {
			missing["NCost"] = true
		}
		if r.NTVR == nil {
			missing["NTVR"] = true
		}
		if r.Channel != nil {
			channelSeen = true
		}
		if r.Slot != nil {
			slotSeen = true
		}
	}
	if !channelSeen {
		missing["Channel"] = true
	}
	if !slotSeen {
		missing["Slot"] = true
	}
	if len(missing) == 0 {
		return nil
	}
	cols := make([]string, 0, len(missing))
	for col := range missing {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(cols, ", "))
}

func checkParams(rows []Row, params Params) error {
	if params.Budget <= 0 {
		return fmt.Errorf("%w: budget must be positive", ErrConfig)
	}
	if params.BudgetBound < 0 {
		return fmt.Errorf("%w: budget bound must not be negative", ErrConfig)
	}
	if params.MinSpots < 0 || params.MaxSpots < params.MinSpots {
		return fmt.Errorf("%w: spot bounds [%d, %d]", ErrConfig, params.MinSpots, params.MaxSpots)
	}
	needsCommercial := params.ChannelCommercialPct != nil || len(params.BudgetProportions) > 0
	if !needsCommercial {
		return nil
	}
	for _, r := range rows {
		if r.Commercial == nil {
			return fmt.Errorf("%w: commercial splits provided, but 'Commercial' column missing", ErrConfig)
		}
	}
	return nil
}

func countCommercials(rows []Row) int {
	n := 0
	for _, r := range rows {
		if r.Commercial != nil && *r.Commercial+1 > n {
			n = *r.Commercial + 1
		}
	}
	return n
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sanitizeName keeps constraint names to characters every LP file reader accepts.
func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
