package accrual

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// THRESHOLD SET - the tier ladder
// =============================================================================

// ThresholdSet holds the tier ladder in insertion order. It does not enforce
// the ladder invariants on mutation; Validate checks them and the engine
// calls it at computation time.
type ThresholdSet struct {
	thresholds []Threshold
}

// NewThresholdSet returns a set holding ts in the given order.
func NewThresholdSet(ts ...Threshold) *ThresholdSet {
	s := &ThresholdSet{thresholds: make([]Threshold, 0, len(ts))}
	s.thresholds = append(s.thresholds, ts...)
	return s
}

// DefaultBaseThreshold is the 1x base tier a fresh ladder starts with.
func DefaultBaseThreshold() Threshold {
	return Threshold{ID: BaseThresholdID, ActiveFrom: 0, Multiplier: decimal.NewFromInt(1)}
}

// Add appends t. Callers own id assignment.
func (s *ThresholdSet) Add(t Threshold) {
	s.thresholds = append(s.thresholds, t)
}

// Remove deletes the tier with the given id.
func (s *ThresholdSet) Remove(id string) error {
	i := s.index(id)
	if i < 0 {
		return ErrThresholdNotFound
	}
	s.thresholds = append(s.thresholds[:i:i], s.thresholds[i+1:]...)
	return nil
}

// Update replaces the tier whose id matches t.ID, keeping its position.
func (s *ThresholdSet) Update(t Threshold) error {
	i := s.index(t.ID)
	if i < 0 {
		return ErrThresholdNotFound
	}
	s.thresholds[i] = t
	return nil
}

// Get returns the tier with the given id.
func (s *ThresholdSet) Get(id string) (Threshold, bool) {
	i := s.index(id)
	if i < 0 {
		return Threshold{}, false
	}
	return s.thresholds[i], true
}

// Base returns the ActiveFrom=0 tier.
func (s *ThresholdSet) Base() (Threshold, bool) {
	return baseOf(s.thresholds)
}

// Len returns the number of tiers.
func (s *ThresholdSet) Len() int { return len(s.thresholds) }

// All returns a copy of the tiers in insertion order.
func (s *ThresholdSet) All() []Threshold {
	out := make([]Threshold, len(s.thresholds))
	copy(out, s.thresholds)
	return out
}

// Replace swaps the whole ladder, e.g. when a card preset is applied.
func (s *ThresholdSet) Replace(ts []Threshold) {
	s.thresholds = append(s.thresholds[:0:0], ts...)
}

// Ascending returns the tiers lowest ActiveFrom first.
func (s *ThresholdSet) Ascending() []Threshold { return LowestFirst(s.thresholds) }

// Descending returns the tiers highest ActiveFrom first.
func (s *ThresholdSet) Descending() []Threshold { return HighestFirst(s.thresholds) }

// Next returns a tier stacked DefaultThresholdStep above the current
// highest breakpoint, at 1x.
func (s *ThresholdSet) Next() Threshold {
	var top int64
	for _, t := range s.thresholds {
		if t.ActiveFrom > top {
			top = t.ActiveFrom
		}
	}
	return NewThreshold(top+DefaultThresholdStep, decimal.NewFromInt(1))
}

// Validate checks the ladder can be segmented against.
func (s *ThresholdSet) Validate() error { return ValidateLadder(s.thresholds) }

func (s *ThresholdSet) index(id string) int {
	for i, t := range s.thresholds {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// ORDERING AND VALIDATION
// =============================================================================

// HighestFirst returns a copy of ts sorted by ActiveFrom, descending.
// Ties keep their insertion order.
func HighestFirst(ts []Threshold) []Threshold {
	out := make([]Threshold, len(ts))
	copy(out, ts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ActiveFrom > out[j].ActiveFrom })
	return out
}

// LowestFirst returns a copy of ts sorted by ActiveFrom, ascending.
func LowestFirst(ts []Threshold) []Threshold {
	out := make([]Threshold, len(ts))
	copy(out, ts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ActiveFrom < out[j].ActiveFrom })
	return out
}

// ValidateLadder checks that ts has exactly one base tier, unique
// breakpoints and no negative values.
func ValidateLadder(ts []Threshold) error {
	seen := make(map[int64]bool, len(ts))
	for _, t := range ts {
		if t.ActiveFrom < 0 || t.Multiplier.IsNegative() {
			return &ThresholdError{Threshold: t, Err: ErrInvalidThreshold}
		}
		if seen[t.ActiveFrom] {
			return &ThresholdError{Threshold: t, Err: ErrDuplicateBreakpoint}
		}
		seen[t.ActiveFrom] = true
	}
	if !seen[0] {
		return ErrMissingBaseThreshold
	}
	return nil
}

func baseOf(ts []Threshold) (Threshold, bool) {
	for _, t := range ts {
		if t.IsBase() {
			return t, true
		}
	}
	return Threshold{}, false
}
