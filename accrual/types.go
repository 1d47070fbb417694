/*
Package accrual provides the loyalty-point accrual engine.

PURPOSE:
  Given an ordered log of monetary events, a ladder of spend-based
  multiplier tiers and a tax rate, the engine partitions each event's
  value across the tiers it crosses and derives the running balances
  after every event. The same engine serves every card configuration.

KEY CONCEPTS IN THIS FILE (types.go):
  - Threshold: a breakpoint (minor currency units) and its multiplier
  - RewardEvent: spend, refund, tax-spend or tax-refund with a positive value
  - EventSegment: the slice of one event attributed to one tier
  - EventAggregate: segments plus the three running balances

BALANCES:
  CS  (cumulative spend):           spend + tax-spend - refund - tax-refund, unfloored
  ECS (exclusive cumulative spend): spend - refund only, floored at zero
  Points:                           opening points + sum of ECS segment points

PRECISION:
  Money is always int64 minor units (cents). Multipliers, tax rates and
  points use decimal.Decimal so a 0.5x tier never loses a half point.

USAGE:
  ladder := accrual.NewThresholdSet(
      accrual.Threshold{ID: accrual.BaseThresholdID, ActiveFrom: 0, Multiplier: decimal.NewFromInt(1)},
      accrual.Threshold{ID: "tier-2", ActiveFrom: 100000, Multiplier: decimal.RequireFromString("0.5")},
  )
  engine := accrual.NewEngine(accrual.DefaultConfig())
  aggs, err := engine.Reduce(log.Events(), ladder, decimal.RequireFromString("0.5"), accrual.Opening{})

SEE ALSO:
  - splitter.go: tier-crossing arithmetic
  - tax.go: zero-crossing split for tax movements
  - engine.go: the left fold over the event log
  - session.go: mutable session that re-derives aggregates on demand
*/
package accrual

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// THRESHOLD - one rung of the multiplier ladder
// =============================================================================

const (
	// BaseThresholdID is the id conventionally given to the ActiveFrom=0 tier.
	BaseThresholdID = "base"

	// TaxThresholdID tags segments produced by the tax segmenter.
	TaxThresholdID = "tax"

	// NoPointsThresholdID tags value that fell below zero while the
	// negative-balance policy is off. Such segments always carry zero points.
	NoPointsThresholdID = "-1"

	// DefaultThresholdStep is the gap used when a new rung is stacked on top
	// of the current highest one.
	DefaultThresholdStep int64 = 100000
)

// Threshold is a breakpoint in cumulative spend above which Multiplier applies.
type Threshold struct {
	ID         string
	ActiveFrom int64
	Multiplier decimal.Decimal
}

// NewThreshold returns a threshold with a freshly generated id.
func NewThreshold(activeFrom int64, multiplier decimal.Decimal) Threshold {
	return Threshold{
		ID:         uuid.NewString(),
		ActiveFrom: activeFrom,
		Multiplier: multiplier,
	}
}

// IsBase reports whether t covers the bottom of the ladder.
func (t Threshold) IsBase() bool { return t.ActiveFrom == 0 }

// =============================================================================
// REWARD EVENT
// =============================================================================

type EventType string

const (
	EventSpend     EventType = "spend"
	EventRefund    EventType = "refund"
	EventTaxSpend  EventType = "tax-spend"
	EventTaxRefund EventType = "tax-refund"
)

// Valid reports whether t is one of the four known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventSpend, EventRefund, EventTaxSpend, EventTaxRefund:
		return true
	}
	return false
}

// IsReversal is true for types that move the balances down.
func (t EventType) IsReversal() bool { return t == EventRefund || t == EventTaxRefund }

// IsTax is true for tax-only movements.
func (t EventType) IsTax() bool { return t == EventTaxSpend || t == EventTaxRefund }

// RewardEvent is one monetary movement. Value is always positive; the
// direction is carried by Type.
type RewardEvent struct {
	ID    string
	Type  EventType
	Value int64
}

// NewEvent returns an event with a freshly generated id.
func NewEvent(eventType EventType, value int64) RewardEvent {
	return RewardEvent{ID: uuid.NewString(), Type: eventType, Value: value}
}

// Signed returns +Value for spend/tax-spend and -Value for refund/tax-refund.
func (e RewardEvent) Signed() int64 {
	if e.Type.IsReversal() {
		return -e.Value
	}
	return e.Value
}

// Validate checks the event is well-typed. The api layer calls it before an
// event reaches the log; the engine itself trusts its input.
func (e RewardEvent) Validate() error {
	if e.ID == "" || !e.Type.Valid() || e.Value <= 0 {
		return &InvalidEventError{Event: e}
	}
	return nil
}

// =============================================================================
// SEGMENTS AND AGGREGATES
// =============================================================================

// EventSegment is the portion of one event attributed to a single tier or
// to the tax / no-points buckets. Start and End bound the balance window
// the portion covers; Value and Points are signed.
type EventSegment struct {
	Start       int64
	End         int64
	Value       int64
	Points      decimal.Decimal
	ThresholdID string
}

// Window is a half-open balance range [Min, Max).
type Window struct {
	Min int64
	Max int64
}

// windowFor returns the balance window an event sweeps from balance.
func windowFor(balance int64, e RewardEvent) Window {
	if e.Type.IsReversal() {
		return Window{Min: balance - e.Value, Max: balance}
	}
	return Window{Min: balance, Max: balance + e.Value}
}

// EventAggregate is the per-event record produced by the engine.
type EventAggregate struct {
	Event       RewardEvent
	CSSegments  []EventSegment
	ECSSegments []EventSegment

	CurrentCumulativeSpend          int64
	CurrentExclusiveCumulativeSpend int64
	CurrentPointsBalance            decimal.Decimal
}

// Points returns the points this event contributed to the balance.
func (a EventAggregate) Points() decimal.Decimal {
	return sumPoints(a.ECSSegments)
}

// PointsFor returns the points attributed to one tier (or bucket), and
// false when no segment of this event touched it.
func (a EventAggregate) PointsFor(thresholdID string) (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for _, s := range a.ECSSegments {
		if s.ThresholdID == thresholdID {
			total = total.Add(s.Points)
			found = true
		}
	}
	return total, found
}

// Divergence is CS - ECS after this event. Tax movements and the ECS floor
// make it drift; nothing reconciles it.
func (a EventAggregate) Divergence() int64 {
	return a.CurrentCumulativeSpend - a.CurrentExclusiveCumulativeSpend
}

func sumPoints(segments []EventSegment) decimal.Decimal {
	total := decimal.Zero
	for _, s := range segments {
		total = total.Add(s.Points)
	}
	return total
}
