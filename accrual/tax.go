package accrual

import "github.com/shopspring/decimal"

// SplitTax segments a tax movement of value over window at a flat rate.
// There is no tier lookup: the window is only split where it crosses zero.
// The non-positive part earns points only when the negative-balance policy
// applies them; otherwise it is tagged NoPointsThresholdID with zero points.
func SplitTax(value int64, window Window, taxRate decimal.Decimal, policy NegativeBalancePolicy) []EventSegment {
	negative := func(start, end, v int64) EventSegment {
		if policy.ApplyPoints {
			return segment(start, end, v, taxRate, TaxThresholdID)
		}
		return segment(start, end, v, decimal.Zero, NoPointsThresholdID)
	}

	switch {
	case window.Min >= 0:
		return []EventSegment{segment(window.Min, window.Max, value, taxRate, TaxThresholdID)}
	case window.Max <= 0:
		return []EventSegment{negative(window.Min, window.Max, value)}
	default:
		return []EventSegment{
			negative(window.Min, 0, -window.Min),
			segment(0, window.Max, window.Max, taxRate, TaxThresholdID),
		}
	}
}

// splitTaxEvent segments a tax-spend or tax-refund starting from CS.
func splitTaxEvent(cs int64, e RewardEvent, taxRate decimal.Decimal, policy NegativeBalancePolicy) []EventSegment {
	segments := SplitTax(e.Value, windowFor(cs, e), taxRate, policy)
	if e.Type.IsReversal() {
		negate(segments)
	}
	return segments
}
