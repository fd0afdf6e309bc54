// Package pricing turns rate card programs into the per-commercial allocation
// rows the optimizer works on: the negotiated rate of every program, then one
// copy per commercial with cost and rating scaled to that commercial's length.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/mediaplan/internal/ratecard"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"github.com/iwvelando/mediaplan/pkg/mathutil"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

var (
	// ErrMissingInput is returned when program ids or durations are empty.
	ErrMissingInput = errors.New("missing required data")
	// ErrNoMatchingRows is returned when the rate card has none of the requested programs.
	ErrNoMatchingRows = errors.New("no programs found for given IDs")
	// ErrInvalidDuration is returned for a commercial length that is not positive.
	ErrInvalidDuration = errors.New("commercial duration must be positive")
)

// Rules holds the client and channel exceptions to ordinary discounting. It
// is scoped to one request.
type Rules struct {
	// DefaultDiscountPct applies to channels without a negotiated discount.
	// Nil means constants.DefaultDiscountPct; an explicit 0 means no discount.
	DefaultDiscountPct *float64 `mapstructure:"discountPct" yaml:"discountPct,omitempty" json:"discount_pct,omitempty"`
	// Client names the advertiser the plan is for.
	Client string `mapstructure:"client" yaml:"client,omitempty" json:"client,omitempty"`
	// ClientChannels lists channels where the client has its own rate.
	ClientChannels []string `mapstructure:"clientChannels" yaml:"clientChannels,omitempty" json:"client_channels,omitempty"`
	// NetCostChannels lists channels priced from their net cost column.
	NetCostChannels []string `mapstructure:"netCostChannels" yaml:"netCostChannels,omitempty" json:"net_cost_channels,omitempty"`
}

func (r Rules) defaultDiscount() float64 {
	if r.DefaultDiscountPct == nil {
		return constants.DefaultDiscountPct
	}
	return *r.DefaultDiscountPct
}

func (r Rules) clientChannel(channel string) bool {
	return r.Client != "" && containsFold(r.ClientChannels, channel)
}

func (r Rules) netCostChannel(channel string) bool {
	return containsFold(r.NetCostChannels, channel)
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

// Request describes one normalization pass.
type Request struct {
	ProgramIDs []int64
	// Durations holds one commercial length in seconds per commercial.
	Durations []float64
	// CommercialKeys optionally names the commercials; defaults to com_1..com_N.
	CommercialKeys []string
	// RateOverrides maps a program id to an explicit negotiated rate.
	RateOverrides map[int64]*float64
	// ChannelDiscounts maps a channel to its discount percentage.
	ChannelDiscounts map[string]float64
	Rules            Rules
}

// RateSource records which precedence rule produced a negotiated rate.
type RateSource string

const (
	SourceOverride   RateSource = "override"
	SourceClientRate RateSource = "client_rate"
	SourceNetCost    RateSource = "net_cost"
	SourceDiscount   RateSource = "discount"
)

// NegotiatedRow is a program with its effective rate for this request.
type NegotiatedRow struct {
	ratecard.Program
	BaseCost       float64
	Rating         float64
	NegotiatedRate float64
	Source         RateSource
}

// AllocationRow is a program paired with one commercial. It is the unit a
// decision variable is created for.
type AllocationRow struct {
	ID             int64   `json:"Id"`
	Channel        string  `json:"Channel"`
	Day            string  `json:"Day"`
	Time           string  `json:"Time"`
	Program        string  `json:"Program"`
	Slot           string  `json:"Slot"`
	Cost           float64 `json:"Cost"`
	TVR            float64 `json:"TVR"`
	NegotiatedRate float64 `json:"Negotiated_Rate"`
	Commercial     int     `json:"Commercial"`
	CommercialKey  string  `json:"Commercial_Key"`
	Duration       float64 `json:"Duration"`
	NCost          float64 `json:"NCost"`
	NTVR           float64 `json:"NTVR"`
}

// Normalizer reads programs from a store and expands them into allocation rows.
type Normalizer struct {
	logger *zap.Logger
	store  ratecard.Store
}

// NewNormalizer returns a Normalizer over store.
func NewNormalizer(logger *zap.Logger, store ratecard.Store) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger, store: store}
}

// Normalize validates the request, reads the programs and expands them. The
// store is only used for the lookup; nothing is held afterwards.
func (n *Normalizer) Normalize(ctx context.Context, req Request) ([]AllocationRow, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	programs, err := n.store.Lookup(ctx, req.ProgramIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate card: %w", err)
	}
	if len(programs) == 0 {
		return nil, ErrNoMatchingRows
	}

	rows, err := Expand(n.logger, programs, req)
	if err != nil {
		return nil, err
	}
	n.logger.Info("normalized rate card",
		zap.String("op", "pricing.Normalize"),
		zap.Int("programs", len(programs)),
		zap.Int("commercials", len(req.Durations)),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func validate(req Request) error {
	if len(req.ProgramIDs) == 0 {
		return fmt.Errorf("%w: program_ids", ErrMissingInput)
	}
	if len(req.Durations) == 0 {
		return fmt.Errorf("%w: durations", ErrMissingInput)
	}
	for i, d := range req.Durations {
		if d <= 0 {
			return fmt.Errorf("%w: commercial %d has duration %v", ErrInvalidDuration, i, d)
		}
	}
	return nil
}

// Expand prices programs and duplicates them once per commercial. Rows are
// ordered by commercial, then by the order of programs.
func Expand(logger *zap.Logger, programs []ratecard.Program, req Request) ([]AllocationRow, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(req.Durations) == 0 {
		return nil, fmt.Errorf("%w: durations", ErrMissingInput)
	}
	if len(programs) == 0 {
		return nil, ErrNoMatchingRows
	}
	for i, d := range req.Durations {
		if d <= 0 {
			return nil, fmt.Errorf("%w: commercial %d has duration %v", ErrInvalidDuration, i, d)
		}
	}

	negotiated := make([]NegotiatedRow, len(programs))
	for i, p := range programs {
		negotiated[i] = Negotiate(logger, p, req)
	}

	keys := CommercialKeys(len(req.Durations), req.CommercialKeys)
	rows := make([]AllocationRow, 0, len(negotiated)*len(req.Durations))
	for c, duration := range req.Durations {
		for _, nr := range negotiated {
			rows = append(rows, AllocationRow{
				ID:             nr.ID,
				Channel:        nr.Channel,
				Day:            nr.Day,
				Time:           nr.Time,
				Program:        nr.Program.Program,
				Slot:           nr.Slot,
				Cost:           mathutil.Round(nr.BaseCost),
				TVR:            mathutil.Round(nr.Rating),
				NegotiatedRate: mathutil.Round(nr.NegotiatedRate),
				Commercial:     c,
				CommercialKey:  keys[c],
				Duration:       duration,
				NCost:          ScaleByDuration(nr.NegotiatedRate, duration),
				NTVR:           ScaleByDuration(nr.Rating, duration),
			})
		}
	}
	return rows, nil
}

// Negotiate resolves the effective rate of one program. Precedence: explicit
// override, client+channel rate, channel net cost, then discounted base cost.
func Negotiate(logger *zap.Logger, p ratecard.Program, req Request) NegotiatedRow {
	nr := NegotiatedRow{
		Program:  p,
		BaseCost: coerce(logger, "Cost", p.ID, p.Cost),
		Rating:   coerce(logger, "TVR", p.ID, p.TVR),
	}

	if rate, ok := req.RateOverrides[p.ID]; ok && rate != nil {
		nr.NegotiatedRate = *rate
		nr.Source = SourceOverride
		return nr
	}
	if req.Rules.clientChannel(p.Channel) {
		if rate := coerceOptional(p.ClientRate); rate != nil {
			nr.NegotiatedRate = *rate
			nr.Source = SourceClientRate
			return nr
		}
	}
	if req.Rules.netCostChannel(p.Channel) {
		if rate := coerceOptional(p.NetCost); rate != nil {
			nr.NegotiatedRate = *rate
			nr.Source = SourceNetCost
			return nr
		}
	}

	discount, ok := channelDiscount(req.ChannelDiscounts, p.Channel)
	if !ok {
		discount = req.Rules.defaultDiscount()
	}
	nr.NegotiatedRate = mathutil.Round(nr.BaseCost * (1.0 - discount/constants.PercentageMultiplier))
	nr.Source = SourceDiscount
	return nr
}

// channelDiscount looks channel up exactly, then case-insensitively since
// configuration keys arrive lower-cased.
func channelDiscount(discounts map[string]float64, channel string) (float64, bool) {
	if d, ok := discounts[channel]; ok {
		return d, true
	}
	for ch, d := range discounts {
		if strings.EqualFold(ch, channel) {
			return d, true
		}
	}
	return 0, false
}

// ScaleByDuration converts a 30 second figure to a duration in seconds,
// rounded to 2 decimals and never negative.
func ScaleByDuration(value, duration float64) float64 {
	scaled := mathutil.Round(value / constants.ReferenceDuration * duration)
	if scaled < 0 {
		return 0
	}
	return scaled
}

// CommercialKeys returns n commercial identifiers, taking provided names
// where present and com_<i+1> otherwise.
func CommercialKeys(n int, provided []string) []string {
	keys := make([]string, n)
	for i := range keys {
		if i < len(provided) && strings.TrimSpace(provided[i]) != "" {
			keys[i] = strings.TrimSpace(provided[i])
			continue
		}
		keys[i] = fmt.Sprintf("com_%d", i+1)
	}
	return keys
}

// coerce converts a catalog value to float64. Missing or unparseable values
// become 0.
func coerce(logger *zap.Logger, column string, id int64, v any) float64 {
	if v == nil {
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		logger.Debug("coerced unparseable rate card value to zero",
			zap.String("op", "pricing.coerce"),
			zap.String("column", column),
			zap.Int64("program", id),
			zap.Error(err),
		)
		return 0
	}
	return f
}

func coerceOptional(v any) *float64 {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}
