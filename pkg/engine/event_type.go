package engine

import (
	"fmt"
)

// EventType is the closed set of workforce event kinds. Every switch over
// EventType in this module is exhaustive; there is no string-keyed dispatch.
type EventType uint8

const (
	// EventTypeUnknown is the zero value and never valid on a persisted event.
	EventTypeUnknown EventType = iota

	// EventTypeHire adds a new employee to the workforce.
	EventTypeHire

	// EventTypeTermination ends employment. No event may follow it in the same year.
	EventTypeTermination

	// EventTypePromotion raises the job level and compensation.
	EventTypePromotion

	// EventTypeRaise is an annual merit and cost-of-living increase.
	EventTypeRaise

	// EventTypeEnrollment enrolls an employee in the retirement plan.
	EventTypeEnrollment

	// EventTypeEnrollmentChange changes the deferral rate of an enrolled employee.
	EventTypeEnrollmentChange

	// EventTypeContribution records the capped annual elective deferral.
	EventTypeContribution
)

var eventTypeNames = [...]string{
	EventTypeUnknown:          "unknown",
	EventTypeHire:             "hire",
	EventTypeTermination:      "termination",
	EventTypePromotion:        "promotion",
	EventTypeRaise:            "raise",
	EventTypeEnrollment:       "enrollment",
	EventTypeEnrollmentChange: "enrollment_change",
	EventTypeContribution:     "contribution",
}

// AllEventTypes lists the valid event types in within-day order.
var AllEventTypes = []EventType{
	EventTypeHire,
	EventTypePromotion,
	EventTypeRaise,
	EventTypeEnrollment,
	EventTypeEnrollmentChange,
	EventTypeContribution,
	EventTypeTermination,
}

// String returns the canonical lower-case name.
func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("EventType(%d)", uint8(t))
}

// ParseEventType maps a canonical name to its EventType. Matching is exact;
// "Raise" or "RAISE" are rejected rather than folded.
func ParseEventType(s string) (EventType, error) {
	for i, name := range eventTypeNames {
		if i == int(EventTypeUnknown) {
			continue
		}
		if name == s {
			return EventType(i), nil
		}
	}
	return EventTypeUnknown, fmt.Errorf("invalid event type: %q", s)
}

// Validate checks that t is one of the defined event types.
func (t EventType) Validate() error {
	if t == EventTypeUnknown || int(t) >= len(eventTypeNames) {
		return fmt.Errorf("invalid event type: %s", t)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(text []byte) error {
	parsed, err := ParseEventType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ChangesCompensation reports whether the event sets a new compensation rate.
func (t EventType) ChangesCompensation() bool {
	switch t {
	case EventTypeHire, EventTypePromotion, EventTypeRaise:
		return true
	case EventTypeUnknown, EventTypeTermination, EventTypeEnrollment,
		EventTypeEnrollmentChange, EventTypeContribution:
		return false
	}
	return false
}

// ChangesDeferral reports whether the event sets a new deferral rate.
func (t EventType) ChangesDeferral() bool {
	switch t {
	case EventTypeEnrollment, EventTypeEnrollmentChange:
		return true
	case EventTypeUnknown, EventTypeHire, EventTypeTermination, EventTypePromotion,
		EventTypeRaise, EventTypeContribution:
		return false
	}
	return false
}

// UniquePerYear reports whether an employee may carry at most one event of
// this type in a simulation year.
func (t EventType) UniquePerYear() bool {
	switch t {
	case EventTypeHire, EventTypeTermination, EventTypeEnrollment, EventTypeContribution:
		return true
	case EventTypeUnknown, EventTypePromotion, EventTypeRaise, EventTypeEnrollmentChange:
		return false
	}
	return false
}

// DayOrder ranks event types that share an effective date. Hires come first
// and terminations last so that a termination always closes the employee's year.
func (t EventType) DayOrder() int {
	switch t {
	case EventTypeHire:
		return 0
	case EventTypePromotion:
		return 1
	case EventTypeRaise:
		return 2
	case EventTypeEnrollment:
		return 3
	case EventTypeEnrollmentChange:
		return 4
	case EventTypeContribution:
		return 5
	case EventTypeTermination:
		return 6
	case EventTypeUnknown:
		return 7
	}
	return 7
}
