/*
splitter.go - Tier-crossing segmentation

PURPOSE:
  Attributes a positive value V to the tiers a balance window crosses.
  The window is [bal, bal+V) for a spend and [bal-V, bal) for a refund.

ALGORITHM (tiers highest ActiveFrom first):
  cutoff := window.Max
  for each tier:
    ActiveFrom >= Max        -> the window never reaches it, skip
    ActiveFrom <= Min        -> the rest of the value sits on this tier, emit [Min, cutoff), stop
    otherwise                -> emit [ActiveFrom, cutoff), cutoff = ActiveFrom, continue
  value left after the base -> window dipped below zero, negative-balance policy

EXAMPLE (base 1x, tier2 0.5x from 100000):
  Spend 150000 at CS 0 -> window [0, 150000)
    tier2: [100000, 150000)  50000 @ 0.5 =  25000
    base:  [0, 100000)      100000 @ 1   = 100000

REFUNDS:
  A refund is split on its window exactly like a spend, then every segment's
  value and points are negated. The points reversed are the points the same
  balance region earned, whatever order it was filled in.
*/
package accrual

import "github.com/shopspring/decimal"

// NegativeBalancePolicy decides where value below the lowest breakpoint goes.
type NegativeBalancePolicy struct {
	// ApplyPoints attributes it to the base tier at the base multiplier.
	// When false it lands in the NoPointsThresholdID bucket with zero points.
	ApplyPoints bool
}

// SplitByThresholds segments value over window against tiers ordered
// highest ActiveFrom first. It returns ErrMissingBaseThreshold when the
// ladder has no ActiveFrom=0 tier. Values and points are positive; callers
// negate for reversals.
func SplitByThresholds(value int64, window Window, descending []Threshold, policy NegativeBalancePolicy) ([]EventSegment, error) {
	base, ok := baseOf(descending)
	if !ok {
		return nil, ErrMissingBaseThreshold
	}

	segments := make([]EventSegment, 0, 2)
	remainder := value
	cutoff := window.Max

	for _, t := range descending {
		if window.Max <= t.ActiveFrom {
			continue
		}

		if window.Min >= t.ActiveFrom {
			segments = append(segments, segment(window.Min, cutoff, remainder, t.Multiplier, t.ID))
			remainder = 0
			break
		}

		overlap := cutoff - t.ActiveFrom
		segments = append(segments, segment(t.ActiveFrom, cutoff, overlap, t.Multiplier, t.ID))
		cutoff = t.ActiveFrom
		remainder -= overlap
	}

	if remainder != 0 {
		if policy.ApplyPoints {
			segments = append(segments, segment(cutoff-remainder, cutoff, remainder, base.Multiplier, base.ID))
		} else {
			segments = append(segments, segment(cutoff-remainder, cutoff, remainder, decimal.Zero, NoPointsThresholdID))
		}
	}

	return segments, nil
}

// splitEvent segments a spend or refund starting from balance.
func splitEvent(balance int64, e RewardEvent, descending []Threshold, policy NegativeBalancePolicy) ([]EventSegment, error) {
	segments, err := SplitByThresholds(e.Value, windowFor(balance, e), descending, policy)
	if err != nil {
		return nil, err
	}
	if e.Type.IsReversal() {
		negate(segments)
	}
	return segments, nil
}

func segment(start, end, value int64, rate decimal.Decimal, thresholdID string) EventSegment {
	return EventSegment{
		Start:       start,
		End:         end,
		Value:       value,
		Points:      decimal.NewFromInt(value).Mul(rate),
		ThresholdID: thresholdID,
	}
}

func negate(segments []EventSegment) {
	for i := range segments {
		segments[i].Value = -segments[i].Value
		segments[i].Points = segments[i].Points.Neg()
	}
}
