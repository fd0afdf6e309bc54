package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSlotSplitLevels(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   SlotSplit
	}{
		{
			name: "channel pair",
			params: Params{
				ChannelPrimePct:    map[string]float64{"DERANA": 70},
				ChannelNonPrimePct: map[string]float64{"DERANA": 30},
				PrimePct:           fp(80), NonPrimePct: fp(20),
			},
			want: SlotSplit{Prime: 70, NonPrime: 30, Source: SourceChannel},
		},
		{
			name: "channel prime only borrows global non-prime",
			params: Params{
				ChannelPrimePct: map[string]float64{"DERANA": 80},
				PrimePct:        fp(60), NonPrimePct: fp(20),
			},
			want: SlotSplit{Prime: 80, NonPrime: 20, Source: SourceChannel},
		},
		{
			name: "invalid channel pair falls to channel default",
			params: Params{
				ChannelPrimePct:           map[string]float64{"DERANA": 70},
				ChannelNonPrimePct:        map[string]float64{"DERANA": 20},
				ChannelDefaultPrimePct:    fp(65),
				ChannelDefaultNonPrimePct: fp(35),
				PrimePct:                  fp(80), NonPrimePct: fp(20),
			},
			want: SlotSplit{Prime: 65, NonPrime: 35, Source: SourceChannelDefault},
		},
		{
			name: "invalid channel pair falls to global",
			params: Params{
				ChannelPrimePct:    map[string]float64{"DERANA": 90},
				ChannelNonPrimePct: map[string]float64{"DERANA": 20},
				PrimePct:           fp(80), NonPrimePct: fp(20),
			},
			want: SlotSplit{Prime: 80, NonPrime: 20, Source: SourceGlobal},
		},
		{
			name: "sum within 0.01 is accepted",
			params: Params{
				ChannelPrimePct:    map[string]float64{"DERANA": 66.67},
				ChannelNonPrimePct: map[string]float64{"DERANA": 33.333},
			},
			want: SlotSplit{Prime: 66.67, NonPrime: 33.333, Source: SourceChannel},
		},
		{
			name:   "other channel's pair is ignored",
			params: Params{ChannelPrimePct: map[string]float64{"SIRASA": 10}, ChannelNonPrimePct: map[string]float64{"SIRASA": 90}, PrimePct: fp(80), NonPrimePct: fp(20)},
			want:   SlotSplit{Prime: 80, NonPrime: 20, Source: SourceGlobal},
		},
		{
			name:   "nothing configured is an equal split",
			params: Params{},
			want:   SlotSplit{Prime: 50, NonPrime: 50, Source: SourceEqualSplit},
		},
		{
			name:   "invalid global is an equal split",
			params: Params{PrimePct: fp(80), NonPrimePct: fp(80)},
			want:   SlotSplit{Prime: 50, NonPrime: 50, Source: SourceEqualSplit},
		},
		{
			name:   "zero prime is a valid split",
			params: Params{PrimePct: fp(0), NonPrimePct: fp(100)},
			want:   SlotSplit{Prime: 0, NonPrime: 100, Source: SourceGlobal},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSlotSplit("DERANA", tt.params))
		})
	}
}

func TestResolveChannelCommercialPctLevels(t *testing.T) {
	params := Params{
		ChannelCommercialPct:        map[string][]float64{"DERANA": {60, 40}},
		ChannelCommercialDefaultPct: []float64{55, 45},
		BudgetProportions:           []float64{70, 20, 10},
	}

	assert.Equal(t, CommercialPct{Pct: 40, Source: SourceChannel},
		ResolveChannelCommercialPct("DERANA", 1, 4, params))
	assert.Equal(t, CommercialPct{Pct: 55, Source: SourceChannelDefault},
		ResolveChannelCommercialPct("SIRASA", 0, 4, params))
	assert.Equal(t, CommercialPct{Pct: 10, Source: SourceGlobal},
		ResolveChannelCommercialPct("DERANA", 2, 4, params))
	assert.Equal(t, CommercialPct{Pct: 25, Source: SourceEqualSplit},
		ResolveChannelCommercialPct("DERANA", 3, 4, params))
	assert.Equal(t, CommercialPct{Pct: 100, Source: SourceEqualSplit},
		ResolveChannelCommercialPct("HIRU", 0, 0, Params{}))
}
