/*
engine.go - Left fold of the event log into aggregates

PURPOSE:
  Replays an ordered event log from the opening balances and returns one
  EventAggregate per event. There is no incremental path: whenever the log,
  the ladder or the tax rate changes, callers replay from scratch. Event
  counts are interactive-scale so a full replay costs O(events x tiers).

DISPATCH:
  spend / refund          -> SplitByThresholds on the CS window
                             + a second run on the ECS window when tracked
  tax-spend / tax-refund  -> SplitTax on the CS window, ECS segments = CS segments

BALANCE UPDATES (per event):
  cs     += signed value                      (every event type)
  ecs    += signed value, then max(ecs, 0)    (spend / refund only)
  points += sum(ECSSegments.Points)

CONFIGURATION:
  TrackExclusiveCumulativeSpend  - points follow the ECS window instead of CS
  ApplyPointsToNegativeBalance   - value below zero earns the base multiplier
                                   (tax rate for tax events) instead of nothing

DETERMINISM:
  Same (events, thresholds, taxRate, opening) always yields the same
  sequence. The engine keeps no state between calls.
*/
package accrual

import "github.com/shopspring/decimal"

// Config selects between the splitting variants.
type Config struct {
	TrackExclusiveCumulativeSpend bool
	ApplyPointsToNegativeBalance  bool
}

// DefaultConfig tracks ECS and credits negative-balance value at the base
// multiplier.
func DefaultConfig() Config {
	return Config{
		TrackExclusiveCumulativeSpend: true,
		ApplyPointsToNegativeBalance:  true,
	}
}

func (c Config) policy() NegativeBalancePolicy {
	return NegativeBalancePolicy{ApplyPoints: c.ApplyPointsToNegativeBalance}
}

// Opening holds the balances the fold starts from.
type Opening struct {
	CumulativeSpend int64
	Points          decimal.Decimal
}

// Engine computes aggregate sequences.
type Engine struct {
	Config Config
}

// NewEngine returns an engine using cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{Config: cfg}
}

// balances is the fold accumulator.
type balances struct {
	cs     int64
	ecs    int64
	points decimal.Decimal
}

// Reduce replays events in order. It fails without a partial result when
// the ladder cannot be segmented against.
func (e *Engine) Reduce(events []RewardEvent, thresholds []Threshold, taxRate decimal.Decimal, opening Opening) ([]EventAggregate, error) {
	if len(events) == 0 {
		return []EventAggregate{}, nil
	}
	if err := ValidateLadder(thresholds); err != nil {
		return nil, err
	}

	descending := HighestFirst(thresholds)
	acc := balances{
		cs:     opening.CumulativeSpend,
		ecs:    max(opening.CumulativeSpend, 0),
		points: opening.Points,
	}

	out := make([]EventAggregate, 0, len(events))
	for i, ev := range events {
		agg, err := e.apply(&acc, ev, descending, taxRate)
		if err != nil {
			return nil, &SegmentationError{EventID: ev.ID, Index: i, Err: err}
		}
		out = append(out, agg)
	}
	return out, nil
}

func (e *Engine) apply(acc *balances, ev RewardEvent, descending []Threshold, taxRate decimal.Decimal) (EventAggregate, error) {
	policy := e.Config.policy()

	var csSegments, ecsSegments []EventSegment
	if ev.Type.IsTax() {
		csSegments = splitTaxEvent(acc.cs, ev, taxRate, policy)
		ecsSegments = csSegments
	} else {
		var err error
		csSegments, err = splitEvent(acc.cs, ev, descending, policy)
		if err != nil {
			return EventAggregate{}, err
		}
		ecsSegments = csSegments
		if e.Config.TrackExclusiveCumulativeSpend && acc.ecs != acc.cs {
			ecsSegments, err = splitEvent(acc.ecs, ev, descending, policy)
			if err != nil {
				return EventAggregate{}, err
			}
		}
	}

	acc.cs += ev.Signed()
	if !ev.Type.IsTax() {
		acc.ecs = max(acc.ecs+ev.Signed(), 0)
	}
	acc.points = acc.points.Add(sumPoints(ecsSegments))

	return EventAggregate{
		Event:                           ev,
		CSSegments:                      csSegments,
		ECSSegments:                     ecsSegments,
		CurrentCumulativeSpend:          acc.cs,
		CurrentExclusiveCumulativeSpend: acc.ecs,
		CurrentPointsBalance:            acc.points,
	}, nil
}
