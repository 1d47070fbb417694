/*
session.go - Mutable state of one interactive session

PURPOSE:
  A Session owns everything the engine needs: the event log, the tier
  ladder, the tax rate, the opening balances and the engine Config.
  Mutators only store new state. Aggregates() replays the whole log every
  time it is called; nothing is cached and nothing is pushed to consumers.

CONCURRENCY:
  Single reader / single writer. Callers that share a Session across
  goroutines (the HTTP handler) serialise access themselves.

EXAMPLE:
  s := accrual.NewSession(accrual.DefaultConfig())
  s.AddEvent(accrual.NewEvent(accrual.EventSpend, 150000))
  aggs, err := s.Aggregates()
*/
package accrual

import "github.com/shopspring/decimal"

// Session is the explicit replacement for UI-managed state containers.
type Session struct {
	Events     *EventLog
	Thresholds *ThresholdSet

	TaxRate decimal.Decimal
	Opening Opening
	Config  Config
}

// NewSession returns a session with an empty log, the default 1x base tier
// and no tax.
func NewSession(cfg Config) *Session {
	return &Session{
		Events:     NewEventLog(),
		Thresholds: NewThresholdSet(DefaultBaseThreshold()),
		TaxRate:    decimal.Zero,
		Opening:    Opening{Points: decimal.Zero},
		Config:     cfg,
	}
}

// AddEvent appends e to the log.
func (s *Session) AddEvent(e RewardEvent) { s.Events.Add(e) }

// RemoveEvent deletes the event with id, ErrEventNotFound if absent.
func (s *Session) RemoveEvent(id string) error { return s.Events.Remove(id) }

// AddThreshold appends t to the ladder.
func (s *Session) AddThreshold(t Threshold) { s.Thresholds.Add(t) }

// RemoveThreshold deletes the tier with id.
func (s *Session) RemoveThreshold(id string) error { return s.Thresholds.Remove(id) }

// UpdateThreshold replaces the tier with t.ID.
func (s *Session) UpdateThreshold(t Threshold) error { return s.Thresholds.Update(t) }

// SetTaxRate sets the flat rate applied to tax movements. Zero disables it.
func (s *Session) SetTaxRate(rate decimal.Decimal) { s.TaxRate = rate }

// SetOpening sets the balances the replay starts from.
func (s *Session) SetOpening(o Opening) { s.Opening = o }

// SetConfig switches splitting variants.
func (s *Session) SetConfig(cfg Config) { s.Config = cfg }

// ApplyLadder replaces the ladder and tax rate in one step, leaving the
// event log alone.
func (s *Session) ApplyLadder(ts []Threshold, taxRate decimal.Decimal) {
	s.Thresholds.Replace(ts)
	s.TaxRate = taxRate
}

// Reset clears the log and restores the default ladder, tax rate and
// opening balances. Config is kept.
func (s *Session) Reset() {
	s.Events.Clear()
	s.Thresholds.Replace([]Threshold{DefaultBaseThreshold()})
	s.TaxRate = decimal.Zero
	s.Opening = Opening{Points: decimal.Zero}
}

// Aggregates replays the log from the opening balances.
func (s *Session) Aggregates() ([]EventAggregate, error) {
	return NewEngine(s.Config).Reduce(s.Events.Events(), s.Thresholds.All(), s.TaxRate, s.Opening)
}
