// Package spread samples the cross-venue price differential once per cycle
// and decides when it has diverged far enough from its baseline to trade.
package spread

import (
	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

// Analyzer maintains cumulative averages of the two directional diffs over
// the warmup window. History is kept only as running sums, so every update
// is O(1). Once warmup_samples have been collected the averages freeze and
// become the baseline that later samples are compared against.
//
// diff_long  = lighter_bid - o1_ask  (buy 01, sell Lighter)
// diff_short = o1_bid - lighter_ask  (sell 01, buy Lighter)
type Analyzer struct {
	warmupSamples  int
	longThreshold  decimal.Decimal
	shortThreshold decimal.Decimal
	minSpread      decimal.Decimal

	count    int
	sumLong  decimal.Decimal
	sumShort decimal.Decimal
	avgLong  decimal.Decimal
	avgShort decimal.Decimal
}

// Options configures an Analyzer.
type Options struct {
	WarmupSamples  int
	LongThreshold  decimal.Decimal
	ShortThreshold decimal.Decimal
	// MinSpread is an absolute floor: a diff below it never fires
	// regardless of the threshold comparison. Zero disables the floor.
	MinSpread decimal.Decimal
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	return &Analyzer{
		warmupSamples:  opts.WarmupSamples,
		longThreshold:  opts.LongThreshold,
		shortThreshold: opts.ShortThreshold,
		minSpread:      opts.MinSpread,
	}
}

// WarmedUp reports whether enough samples have been collected to evaluate
// signals.
func (a *Analyzer) WarmedUp() bool { return a.count >= a.warmupSamples }

// SampleCount returns the number of samples observed so far.
func (a *Analyzer) SampleCount() int { return a.count }

// Update ingests one pair of quotes and returns the cycle's sample with the
// signal decision. During warmup the averages accumulate and no signal is
// emitted regardless of magnitude; after warmup the frozen averages are the
// baseline. When both directions fire in the same cycle, Long wins — a
// deliberate tie-break convention, not an ordering accident.
func (a *Analyzer) Update(o1, lighter domain.Quote) domain.SpreadSample {
	diffLong := lighter.Bid.Sub(o1.Ask)
	diffShort := o1.Bid.Sub(lighter.Ask)

	a.count++
	if a.count <= a.warmupSamples {
		a.sumLong = a.sumLong.Add(diffLong)
		a.sumShort = a.sumShort.Add(diffShort)
		n := decimal.NewFromInt(int64(a.count))
		a.avgLong = a.sumLong.Div(n)
		a.avgShort = a.sumShort.Div(n)
	}

	sample := domain.SpreadSample{
		O1Bid:       o1.Bid,
		O1Ask:       o1.Ask,
		LighterBid:  lighter.Bid,
		LighterAsk:  lighter.Ask,
		DiffLong:    diffLong,
		DiffShort:   diffShort,
		AvgLong:     a.avgLong,
		AvgShort:    a.avgShort,
		SampleCount: a.count,
		Signal:      domain.SignalNone,
	}
	if lighter.At.After(o1.At) {
		sample.At = lighter.At
	} else {
		sample.At = o1.At
	}

	if a.count < a.warmupSamples {
		return sample
	}

	if diffLong.GreaterThan(a.avgLong.Add(a.longThreshold)) && diffLong.GreaterThanOrEqual(a.minSpread) {
		sample.Signal = domain.SignalLong
		return sample
	}
	if diffShort.GreaterThan(a.avgShort.Add(a.shortThreshold)) && diffShort.GreaterThanOrEqual(a.minSpread) {
		sample.Signal = domain.SignalShort
	}
	return sample
}

// Averages returns the current (or frozen) baseline averages.
func (a *Analyzer) Averages() (long, short decimal.Decimal) {
	return a.avgLong, a.avgShort
}

// TriggerLines returns the values the diffs must exceed to fire, used by the
// heartbeat report.
func (a *Analyzer) TriggerLines() (long, short decimal.Decimal) {
	long = a.avgLong.Add(a.longThreshold)
	if long.LessThan(a.minSpread) {
		long = a.minSpread
	}
	short = a.avgShort.Add(a.shortThreshold)
	if short.LessThan(a.minSpread) {
		short = a.minSpread
	}
	return long, short
}
