package accrual

// EventLog is the ordered, insertion-order collection of events. It never
// reorders; removal keeps the relative order of the rest.
type EventLog struct {
	events []RewardEvent
}

// NewEventLog returns a log holding events in order.
func NewEventLog(events ...RewardEvent) *EventLog {
	l := &EventLog{}
	l.events = append(l.events, events...)
	return l
}

// Add appends e.
func (l *EventLog) Add(e RewardEvent) {
	l.events = append(l.events, e)
}

// Remove deletes the first event with the given id. An unknown id returns
// ErrEventNotFound and leaves the log untouched.
func (l *EventLog) Remove(id string) error {
	for i, e := range l.events {
		if e.ID == id {
			l.events = append(l.events[:i:i], l.events[i+1:]...)
			return nil
		}
	}
	return ErrEventNotFound
}

// Get returns the first event with the given id.
func (l *EventLog) Get(id string) (RewardEvent, bool) {
	for _, e := range l.events {
		if e.ID == id {
			return e, true
		}
	}
	return RewardEvent{}, false
}

// Events returns a snapshot copy of the log.
func (l *EventLog) Events() []RewardEvent {
	out := make([]RewardEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events.
func (l *EventLog) Len() int { return len(l.events) }

// Clear drops every event.
func (l *EventLog) Clear() { l.events = nil }
