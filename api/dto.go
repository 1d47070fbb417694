/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the accrual model from the external API contract. Money is always an
  integer in minor units (cents); multipliers, tax rates and points travel
  as decimal strings so 0.5x tiers never lose precision in a browser.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Session:     SessionDTO, SettingsDTO, UpdateSettingsRequest
  Thresholds:  ThresholdDTO, ThresholdRequest
  Events:      EventDTO, CreateEventRequest
  Aggregates:  AggregatesResponse, AggregateDTO, SegmentDTO
  Cards:       factory.CardJSON (used as-is)
  Scenarios:   ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/card.go: CardJSON type
*/
package api

import (
	"github.com/flagpoonage/points-viz/accrual"
)

// =============================================================================
// SESSION
// =============================================================================

// SettingsDTO is the session's tax rate, opening balances and engine flags.
type SettingsDTO struct {
	TaxRate                       string `json:"tax_rate"`
	OpeningCumulativeSpend        int64  `json:"opening_cumulative_spend"`
	OpeningPoints                 string `json:"opening_points"`
	TrackExclusiveCumulativeSpend bool   `json:"track_exclusive_cumulative_spend"`
	ApplyPointsToNegativeBalance  bool   `json:"apply_points_to_negative_balance"`
}

// UpdateSettingsRequest changes only the fields that are present.
type UpdateSettingsRequest struct {
	TaxRate                       *string `json:"tax_rate"`
	OpeningCumulativeSpend        *int64  `json:"opening_cumulative_spend"`
	OpeningPoints                 *string `json:"opening_points"`
	TrackExclusiveCumulativeSpend *bool   `json:"track_exclusive_cumulative_spend"`
	ApplyPointsToNegativeBalance  *bool   `json:"apply_points_to_negative_balance"`
}

// SessionDTO summarises the session: settings, ladder and closing balances.
// Error is set, and the balances left at their opening values, when the
// ladder cannot be segmented against.
type SessionDTO struct {
	Settings   SettingsDTO    `json:"settings"`
	Thresholds []ThresholdDTO `json:"thresholds"`
	EventCount int            `json:"event_count"`
	Scenario   string         `json:"scenario,omitempty"`

	CumulativeSpend          int64  `json:"cumulative_spend"`
	ExclusiveCumulativeSpend int64  `json:"exclusive_cumulative_spend"`
	PointsBalance            string `json:"points_balance"`
	Error                    string `json:"error,omitempty"`
}

// =============================================================================
// THRESHOLDS
// =============================================================================

// ThresholdDTO represents one ladder rung.
type ThresholdDTO struct {
	ID         string `json:"id"`
	ActiveFrom int64  `json:"active_from"`
	Multiplier string `json:"multiplier"`
	IsBase     bool   `json:"is_base"`
}

// ThresholdRequest creates or updates a rung. An empty create request
// stacks a 1x rung on top of the current highest breakpoint.
type ThresholdRequest struct {
	ActiveFrom *int64 `json:"active_from"`
	Multiplier string `json:"multiplier"`
}

// =============================================================================
// EVENTS
// =============================================================================

// EventDTO represents one logged event.
type EventDTO struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

// CreateEventRequest appends an event to the log.
type CreateEventRequest struct {
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

// =============================================================================
// AGGREGATES
// =============================================================================

// SegmentDTO is one tier's share of an event.
type SegmentDTO struct {
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Value       int64  `json:"value"`
	Points      string `json:"points"`
	ThresholdID string `json:"threshold_id"`
}

// AggregateDTO is one row of the accrual table.
type AggregateDTO struct {
	Event       EventDTO     `json:"event"`
	CSSegments  []SegmentDTO `json:"cs_segments"`
	ECSSegments []SegmentDTO `json:"ecs_segments"`

	CumulativeSpend          int64  `json:"cumulative_spend"`
	ExclusiveCumulativeSpend int64  `json:"exclusive_cumulative_spend"`
	Divergence               int64  `json:"divergence"`
	EventPoints              string `json:"event_points"`
	PointsBalance            string `json:"points_balance"`

	// TierPoints has one entry per ladder rung (zero when untouched) plus the
	// tax and no-points buckets when this event used them.
	TierPoints map[string]string `json:"tier_points"`
}

// AggregatesResponse is the full replay. Thresholds are the table columns,
// lowest breakpoint first.
type AggregatesResponse struct {
	Thresholds []ThresholdDTO `json:"thresholds"`
	Aggregates []AggregateDTO `json:"aggregates"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toThresholdDTO(t accrual.Threshold) ThresholdDTO {
	return ThresholdDTO{
		ID:         t.ID,
		ActiveFrom: t.ActiveFrom,
		Multiplier: t.Multiplier.String(),
		IsBase:     t.IsBase(),
	}
}

func toThresholdDTOs(ts []accrual.Threshold) []ThresholdDTO {
	out := make([]ThresholdDTO, 0, len(ts))
	for _, t := range ts {
		out = append(out, toThresholdDTO(t))
	}
	return out
}

func toEventDTO(e accrual.RewardEvent) EventDTO {
	return EventDTO{ID: e.ID, Type: string(e.Type), Value: e.Value}
}

func toSegmentDTOs(segments []accrual.EventSegment) []SegmentDTO {
	out := make([]SegmentDTO, 0, len(segments))
	for _, s := range segments {
		out = append(out, SegmentDTO{
			Start:       s.Start,
			End:         s.End,
			Value:       s.Value,
			Points:      s.Points.String(),
			ThresholdID: s.ThresholdID,
		})
	}
	return out
}

func toAggregateDTO(a accrual.EventAggregate, ladder []accrual.Threshold) AggregateDTO {
	tierPoints := make(map[string]string, len(ladder)+2)
	for _, t := range ladder {
		pts, _ := a.PointsFor(t.ID)
		tierPoints[t.ID] = pts.String()
	}
	for _, bucket := range []string{accrual.TaxThresholdID, accrual.NoPointsThresholdID} {
		if pts, ok := a.PointsFor(bucket); ok {
			tierPoints[bucket] = pts.String()
		}
	}

	return AggregateDTO{
		Event:                    toEventDTO(a.Event),
		CSSegments:               toSegmentDTOs(a.CSSegments),
		ECSSegments:              toSegmentDTOs(a.ECSSegments),
		CumulativeSpend:          a.CurrentCumulativeSpend,
		ExclusiveCumulativeSpend: a.CurrentExclusiveCumulativeSpend,
		Divergence:               a.Divergence(),
		EventPoints:              a.Points().String(),
		PointsBalance:            a.CurrentPointsBalance.String(),
		TierPoints:               tierPoints,
	}
}

func toSettingsDTO(s *accrual.Session) SettingsDTO {
	return SettingsDTO{
		TaxRate:                       s.TaxRate.String(),
		OpeningCumulativeSpend:        s.Opening.CumulativeSpend,
		OpeningPoints:                 s.Opening.Points.String(),
		TrackExclusiveCumulativeSpend: s.Config.TrackExclusiveCumulativeSpend,
		ApplyPointsToNegativeBalance:  s.Config.ApplyPointsToNegativeBalance,
	}
}
