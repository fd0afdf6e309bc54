package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/spf13/cast"
)

// Payload is a loosely typed request body, as decoded from JSON or YAML.
type Payload map[string]any

func (p Payload) has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// stringMap reads a nested mapping. yaml.v3 decodes the mappings nested in a
// Payload as Payload, which cast does not recognise.
func stringMap(v any) map[string]any {
	if nested, ok := v.(Payload); ok {
		return nested
	}
	return cast.ToStringMap(v)
}

func (p Payload) float(key string) float64 {
	return cast.ToFloat64(p[key])
}

func (p Payload) floatPtr(key string) *float64 {
	if !p.has(key) {
		return nil
	}
	f, err := cast.ToFloat64E(p[key])
	if err != nil {
		return nil
	}
	return &f
}

func (p Payload) intPtr(key string) *int {
	if !p.has(key) {
		return nil
	}
	n, err := cast.ToIntE(p[key])
	if err != nil {
		return nil
	}
	return &n
}

func (p Payload) seconds(key string) time.Duration {
	return time.Duration(cast.ToFloat64(p[key]) * float64(time.Second))
}

func (p Payload) floats(key string) []float64 {
	if !p.has(key) {
		return nil
	}
	items := cast.ToSlice(p[key])
	out := make([]float64, len(items))
	for i, v := range items {
		out[i] = cast.ToFloat64(v)
	}
	return out
}

func (p Payload) stringList(key string) []string {
	if !p.has(key) {
		return nil
	}
	return cast.ToStringSlice(p[key])
}

func (p Payload) floatMap(key string) map[string]float64 {
	if !p.has(key) {
		return nil
	}
	raw := stringMap(p[key])
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		out[k] = cast.ToFloat64(v)
	}
	return out
}

func (p Payload) records(key string) []map[string]any {
	if !p.has(key) {
		return nil
	}
	items := cast.ToSlice(p[key])
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, stringMap(item))
	}
	return out
}

// ProgramsRequest reads program_ids, durations, num_commercials,
// commercial_keys, negotiated_rates, channel_discounts and the optional
// pricing rules.
func (p Payload) ProgramsRequest() (pricing.Request, error) {
	ids := cast.ToSlice(p["program_ids"])
	req := pricing.Request{
		ProgramIDs:       make([]int64, 0, len(ids)),
		Durations:        p.floats("durations"),
		CommercialKeys:   p.stringList("commercial_keys"),
		ChannelDiscounts: p.floatMap("channel_discounts"),
		Rules: pricing.Rules{
			DefaultDiscountPct: p.floatPtr("discount_pct"),
			Client:             cast.ToString(p["client"]),
			ClientChannels:     p.stringList("client_channels"),
			NetCostChannels:    p.stringList("net_cost_channels"),
		},
	}
	for _, v := range ids {
		id, err := cast.ToInt64E(v)
		if err != nil {
			return pricing.Request{}, fmt.Errorf("%w: program id %v", ErrInvalidRequest, v)
		}
		req.ProgramIDs = append(req.ProgramIDs, id)
	}

	if n := p.intPtr("num_commercials"); n != nil {
		if *n <= 0 {
			return pricing.Request{}, fmt.Errorf("%w: num_commercials", pricing.ErrMissingInput)
		}
		if *n > len(req.Durations) {
			return pricing.Request{}, fmt.Errorf("%w: %d durations for %d commercials", pricing.ErrMissingInput, len(req.Durations), *n)
		}
		req.Durations = req.Durations[:*n]
	}

	if p.has("negotiated_rates") {
		rates := stringMap(p["negotiated_rates"])
		req.RateOverrides = make(map[int64]*float64, len(rates))
		for k := range rates {
			id, err := cast.ToInt64E(strings.TrimSpace(k))
			if err != nil {
				return pricing.Request{}, fmt.Errorf("%w: negotiated rate key %q", ErrInvalidRequest, k)
			}
			req.RateOverrides[id] = Payload(rates).floatPtr(k)
		}
	}
	return req, nil
}

// OptimizeRequest reads a budget-share optimization. Rows come from df_full
// when present, otherwise from the program selection fields.
func (p Payload) OptimizeRequest() (OptimizeRequest, error) {
	req := OptimizeRequest{
		Budget:                      p.float("budget"),
		BudgetBound:                 p.floatPtr("budget_bound"),
		MinSpots:                    p.intPtr("min_spots"),
		MaxSpots:                    p.intPtr("max_spots"),
		BudgetProportions:           p.floats("budget_proportions"),
		BudgetShares:                p.floatMap("budget_shares"),
		PrimePct:                    p.floatPtr("prime_pct"),
		NonPrimePct:                 p.floatPtr("nonprime_pct"),
		ChannelDefaultPrimePct:      p.floatPtr("channel_default_prime_pct"),
		ChannelDefaultNonPrimePct:   p.floatPtr("channel_default_nonprime_pct"),
		ChannelPrimePct:             p.floatMap("channel_prime_pct_map"),
		ChannelNonPrimePct:          p.floatMap("channel_nonprime_pct_map"),
		ChannelCommercialDefaultPct: p.floats("channel_commercial_default_pct"),
		TimeLimit:                   p.seconds("time_limit"),
	}
	if n := p.intPtr("num_commercials"); n != nil {
		req.NumCommercials = *n
	}

	if p.has("channel_commercial_pct_map") {
		raw := stringMap(p["channel_commercial_pct_map"])
		req.ChannelCommercialPct = make(map[string][]float64, len(raw))
		for ch := range raw {
			req.ChannelCommercialPct[ch] = Payload(raw).floats(ch)
		}
	}

	if records := p.records("df_full"); len(records) > 0 {
		req.Table = TableFromRecords(records)
		return req, nil
	}
	if p.has("program_ids") {
		programs, err := p.ProgramsRequest()
		if err != nil {
			return OptimizeRequest{}, err
		}
		req.Programs = &programs
	}
	return req, nil
}

// BonusRequest reads a bonus optimization. channels, bonusBudgetsByChannel,
// programRows and commercialTargetsByChannel are required.
func (p Payload) BonusRequest() (BonusRequest, error) {
	var missing []string
	for _, key := range []string{"channels", "bonusBudgetsByChannel", "programRows", "commercialTargetsByChannel"} {
		if _, ok := p[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return BonusRequest{}, fmt.Errorf("%w: missing fields: %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	req := BonusRequest{
		Rows:                BonusRowsFromRecords(p.records("programRows")),
		Channels:            p.stringList("channels"),
		BonusBudgets:        p.floatMap("bonusBudgetsByChannel"),
		AllowPct:            p.floatMap("channelAllowPctByChannel"),
		DefaultAllowPct:     p.float("defaultChannelAllowPct"),
		CommercialTolerance: p.float("commercialTolerancePct"),
		TimeLimit:           p.seconds("timeLimitSec"),
	}
	if n := p.intPtr("maxSpots"); n != nil {
		req.MaxSpots = *n
	}

	targets := stringMap(p["commercialTargetsByChannel"])
	req.CommercialTargets = make(map[string]map[string]float64, len(targets))
	for ch := range targets {
		req.CommercialTargets[ch] = Payload(targets).floatMap(ch)
	}
	return req, nil
}
