package model

import (
	"fmt"
	"strings"

	"github.com/iwvelando/mediaplan/internal/ratecard"
	"github.com/iwvelando/mediaplan/pkg/constants"
)

// BonusParams are the rules of a bonus airtime optimization: non-prime
// airtime bought against per-channel bonus budgets, split across
// commercials by per-channel spend targets.
type BonusParams struct {
	Channels []string
	// BonusBudgets maps a channel to its bonus budget.
	BonusBudgets map[string]float64
	// AllowPct maps a channel to its ± band around the bonus budget, as a fraction.
	AllowPct        map[string]float64
	DefaultAllowPct float64
	// CommercialTargets maps channel → commercial key → target spend.
	CommercialTargets   map[string]map[string]float64
	CommercialTolerance float64
	MaxSpots            int
	Namespace           string
}

func (p BonusParams) withDefaults() BonusParams {
	if p.DefaultAllowPct == 0 {
		p.DefaultAllowPct = constants.DefaultBonusAllowPct
	}
	if p.CommercialTolerance == 0 {
		p.CommercialTolerance = constants.ShareTolerance
	}
	if p.MaxSpots == 0 {
		p.MaxSpots = constants.DefaultBonusMaxSpots
	}
	return p
}

// BuildBonus assembles the bonus model. Only non-prime rows with a channel
// and a commercial key take part; Model.RowIndex maps variables back to rows.
func BuildBonus(rows []Row, params BonusParams) (*Model, error) {
	if len(params.Channels) == 0 {
		return nil, fmt.Errorf("%w: no channels provided", ErrConfig)
	}
	params = params.withDefaults()
	if params.MaxSpots < 0 {
		return nil, fmt.Errorf("%w: max spots %d", ErrConfig, params.MaxSpots)
	}

	ns := params.Namespace
	if ns == "" {
		ns = NewNamespace()
	}
	b := &builder{
		rows:  rows,
		model: &Model{Name: "Bonus_Optimization", Namespace: ns},
	}
	m := b.model
	for i, r := range rows {
		if !ratecard.IsNonPrime(r.slot()) || r.channel() == "" || strings.TrimSpace(r.CommercialKey) == "" {
			continue
		}
		idx := len(m.Variables)
		m.Variables = append(m.Variables, Variable{Name: variableName(ns, idx), Lower: 0, Upper: params.MaxSpots})
		m.RowIndex = append(m.RowIndex, i)
		m.Objective = append(m.Objective, Term{Var: idx, Coef: r.ntvr()})
	}
	if len(m.Variables) == 0 {
		return nil, fmt.Errorf("%w: no valid non-prime program rows after filtering", ErrConfig)
	}

	for _, ch := range params.Channels {
		allow, ok := params.AllowPct[ch]
		if !ok {
			allow = params.DefaultAllowPct
		}
		b.addBounded(ConstraintSpec{
			Kind:  KindBonusChannel,
			Name:  "bonus_" + ch,
			Scope: b.channelScope(ch),
			Band:  RelativeBand(params.BonusBudgets[ch], allow),
		})
	}

	for _, ch := range params.Channels {
		targets := params.CommercialTargets[ch]
		for _, key := range sortedKeys(targets) {
			inChannel := b.channelScope(ch)
			commercialKey := key
			b.addBounded(ConstraintSpec{
				Kind: KindBonusCommercial,
				Name: fmt.Sprintf("bonus_%s_%s", ch, commercialKey),
				Scope: func(i int) bool {
					return inChannel(i) && b.rows[m.RowIndex[i]].CommercialKey == commercialKey
				},
				Band: RelativeBand(targets[key], params.CommercialTolerance),
			})
		}
	}
	return m, nil
}
