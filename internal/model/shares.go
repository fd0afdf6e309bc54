package model

import (
	"github.com/iwvelando/mediaplan/pkg/constants"
	"github.com/iwvelando/mediaplan/pkg/mathutil"
)

// Source names the fallback level a share was taken from.
type Source string

const (
	SourceChannel        Source = "channel"
	SourceChannelDefault Source = "channel_default"
	SourceGlobal         Source = "global"
	SourceEqualSplit     Source = "equal_split"
)

// SlotSplit is the prime/non-prime split of one channel budget, in percent.
type SlotSplit struct {
	Prime    float64
	NonPrime float64
	Source   Source
}

func validSplit(prime, nonPrime float64) bool {
	return mathutil.WithinTolerance(prime+nonPrime, constants.PercentageMultiplier, constants.SplitSumTolerance)
}

// ResolveSlotSplit picks the prime/non-prime split for ch. Levels, in order:
// the channel's own pair, the per-channel default, the global split, an equal
// split. A level is used only when its pair sums to 100 within 0.01; a
// channel that sets only one side borrows the other from the next level
// before the sum is checked.
func ResolveSlotSplit(ch string, params Params) SlotSplit {
	type level struct {
		prime, nonPrime *float64
		source          Source
	}
	levels := []level{
		{lookup(params.ChannelPrimePct, ch), lookup(params.ChannelNonPrimePct, ch), SourceChannel},
		{params.ChannelDefaultPrimePct, params.ChannelDefaultNonPrimePct, SourceChannelDefault},
		{params.PrimePct, params.NonPrimePct, SourceGlobal},
	}

	for i, lv := range levels {
		if lv.prime == nil && lv.nonPrime == nil {
			continue
		}
		prime, nonPrime := lv.prime, lv.nonPrime
		for _, next := range levels[i+1:] {
			if prime == nil {
				prime = next.prime
			}
			if nonPrime == nil {
				nonPrime = next.nonPrime
			}
		}
		if prime == nil || nonPrime == nil {
			continue
		}
		if validSplit(*prime, *nonPrime) {
			return SlotSplit{Prime: *prime, NonPrime: *nonPrime, Source: lv.source}
		}
	}
	half := constants.PercentageMultiplier / 2
	return SlotSplit{Prime: half, NonPrime: half, Source: SourceEqualSplit}
}

// CommercialPct is one commercial's share of a channel budget, in percent.
type CommercialPct struct {
	Pct    float64
	Source Source
}

// ResolveChannelCommercialPct picks commercial c's share of channel ch.
// Levels, in order: the channel's own split, the per-channel default split,
// the commercial's global budget proportion, an equal split.
func ResolveChannelCommercialPct(ch string, c, numCommercials int, params Params) CommercialPct {
	if split, ok := params.ChannelCommercialPct[ch]; ok && c < len(split) {
		return CommercialPct{Pct: split[c], Source: SourceChannel}
	}
	if c < len(params.ChannelCommercialDefaultPct) {
		return CommercialPct{Pct: params.ChannelCommercialDefaultPct[c], Source: SourceChannelDefault}
	}
	if c < len(params.BudgetProportions) {
		return CommercialPct{Pct: params.BudgetProportions[c], Source: SourceGlobal}
	}
	if numCommercials <= 0 {
		numCommercials = 1
	}
	return CommercialPct{Pct: constants.PercentageMultiplier / float64(numCommercials), Source: SourceEqualSplit}
}

func lookup(m map[string]float64, key string) *float64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	return &v
}
