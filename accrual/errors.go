/*
errors.go - Error types for the accrual engine

ERROR CATEGORIES:
  1. Configuration errors - the ladder cannot be segmented against
     (missing base tier, duplicate breakpoints, negative values).
     These fail the whole computation; no partial aggregate is returned.
  2. Lookup errors - remove/update on an id that is not present.
     Recoverable: the collection is left exactly as it was.
  3. Input errors - malformed events rejected before they reach the log.

USAGE:
  aggs, err := engine.Reduce(events, ladder, taxRate, accrual.Opening{})
  if errors.Is(err, accrual.ErrMissingBaseThreshold) {
      // configuration invariant broken, surface it, never patch it
  }

  if err := log.Remove(id); errors.Is(err, accrual.ErrEventNotFound) {
      // nothing happened
  }
*/
package accrual

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingBaseThreshold is returned when no tier has ActiveFrom = 0 at
	// segmentation time.
	ErrMissingBaseThreshold = errors.New("missing base threshold")

	// ErrDuplicateBreakpoint is returned when two tiers share an ActiveFrom.
	ErrDuplicateBreakpoint = errors.New("duplicate threshold breakpoint")

	// ErrInvalidThreshold is returned for negative breakpoints or multipliers.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrThresholdNotFound is returned by ThresholdSet.Remove/Update for an
	// unknown id.
	ErrThresholdNotFound = errors.New("threshold not found")

	// ErrEventNotFound is returned by EventLog.Remove for an unknown id.
	ErrEventNotFound = errors.New("event not found")

	// ErrInvalidEvent is returned for events with an empty id, unknown type
	// or non-positive value.
	ErrInvalidEvent = errors.New("invalid event")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ThresholdError names the tier that broke a ladder invariant.
type ThresholdError struct {
	Threshold Threshold
	Err       error
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("%v: %s (active_from %d, multiplier %s)",
		e.Err, e.Threshold.ID, e.Threshold.ActiveFrom, e.Threshold.Multiplier)
}

func (e *ThresholdError) Unwrap() error { return e.Err }

// SegmentationError is returned by the engine when an event could not be
// segmented. The whole computation is abandoned.
type SegmentationError struct {
	EventID string
	Index   int
	Err     error
}

func (e *SegmentationError) Error() string {
	return fmt.Sprintf("segmenting event %d (%s): %v", e.Index, e.EventID, e.Err)
}

func (e *SegmentationError) Unwrap() error { return e.Err }

// InvalidEventError describes an event rejected by Validate.
type InvalidEventError struct {
	Event RewardEvent
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event %q: type %q value %d", e.Event.ID, e.Event.Type, e.Event.Value)
}

func (e *InvalidEventError) Unwrap() error { return ErrInvalidEvent }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrThresholdNotFound)
}

// IsConfigError returns true if the ladder itself is unusable.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingBaseThreshold) ||
		errors.Is(err, ErrDuplicateBreakpoint) ||
		errors.Is(err, ErrInvalidThreshold)
}
