package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// eventNamespace scopes name-based event IDs.
var eventNamespace = uuid.MustParse("6f1c2a4e-8d3b-5c7f-9a1e-2b4d6f8a0c3e")

// compensationEpsilon absorbs float noise when chaining compensation amounts
// that were each rounded to cents.
const compensationEpsilon = 0.005

// SortEvents orders events canonically: by employee, effective date, then
// within-day type order. Events that tie on all three keep their relative order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.Before(b.EffectiveDate)
		}
		return a.Type.DayOrder() < b.Type.DayOrder()
	})
}

// EmployeeEvents is one employee's events in canonical order.
type EmployeeEvents struct {
	EmployeeID string
	Events     []Event
}

// GroupByEmployee splits canonically sorted events into per-employee runs.
func GroupByEmployee(events []Event) []EmployeeEvents {
	var groups []EmployeeEvents
	for i := 0; i < len(events); {
		j := i
		for j < len(events) && events[j].EmployeeID == events[i].EmployeeID {
			j++
		}
		groups = append(groups, EmployeeEvents{EmployeeID: events[i].EmployeeID, Events: events[i:j]})
		i = j
	}
	return groups
}

// Sequencer orders a year's events and rejects causally inconsistent combinations.
type Sequencer struct {
	year  int
	start map[string]*SnapshotRow
}

// NewSequencer returns a sequencer for year whose starting workforce is the
// active population of prior.
func NewSequencer(year int, prior *Snapshot) *Sequencer {
	start := make(map[string]*SnapshotRow)
	if prior != nil {
		for i := range prior.Rows {
			if prior.Rows[i].IsActive() {
				start[prior.Rows[i].EmployeeID] = &prior.Rows[i]
			}
		}
	}
	return &Sequencer{year: year, start: start}
}

// Sequence returns a canonically ordered copy of events with per-employee
// sequence numbers assigned. Any inconsistency fails the whole year with an
// EventConsistencyError.
func (s *Sequencer) Sequence(events []Event) ([]Event, error) {
	out := make([]Event, len(events))
	copy(out, events)

	for i := range out {
		if err := s.checkEvent(&out[i]); err != nil {
			return nil, err
		}
		out[i].EffectiveDate = Day(out[i].EffectiveDate)
	}

	SortEvents(out)

	for _, group := range GroupByEmployee(out) {
		for i := range group.Events {
			group.Events[i].Sequence = i + 1
		}
		if err := s.checkEmployee(group); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Sequencer) checkEvent(e *Event) error {
	if e.EmployeeID == "" {
		return NewEventConsistencyError(s.year, "", "event has no employee id", nil, e)
	}
	if err := e.Type.Validate(); err != nil {
		return NewEventConsistencyError(s.year, e.EmployeeID, err.Error(), nil, e)
	}
	if e.SimulationYear != s.year {
		return NewEventConsistencyError(s.year, e.EmployeeID,
			fmt.Sprintf("event belongs to simulation year %d", e.SimulationYear), nil, e)
	}
	if !InYear(e.EffectiveDate, s.year) {
		return NewEventConsistencyError(s.year, e.EmployeeID,
			fmt.Sprintf("effective date %s is outside the simulation year", e.EffectiveDate.Format(time.DateOnly)), nil, e)
	}
	return nil
}

func (s *Sequencer) checkEmployee(group EmployeeEvents) error {
	id := group.EmployeeID
	row, existing := s.start[id]

	var (
		compensation float64
		compKnown    bool
		enrolled     bool
		deferral     float64
		terminal     *Event
		lastComp     *Event
		seen         = make(map[EventType]*Event)
	)
	if existing {
		compensation, compKnown = row.CurrentCompensation, true
		enrolled, deferral = row.Enrolled, row.DeferralRate
	}

	for i := range group.Events {
		e := &group.Events[i]

		if terminal != nil {
			return NewEventConsistencyError(s.year, id, fmt.Sprintf("%s event after termination", e.Type), terminal, e)
		}
		if prev, dup := seen[e.Type]; dup && e.Type.UniquePerYear() {
			return NewEventConsistencyError(s.year, id, fmt.Sprintf("duplicate %s event", e.Type), prev, e)
		}
		seen[e.Type] = e

		switch e.Type {
		case EventTypeHire:
			if existing {
				return NewEventConsistencyError(s.year, id, "hire event for an employee already in the workforce", nil, e)
			}
			if i > 0 {
				return NewEventConsistencyError(s.year, id, "hire event is not the employee's first event", &group.Events[i-1], e)
			}
			compensation, compKnown = e.Compensation, true
			lastComp = e

		case EventTypePromotion, EventTypeRaise:
			if !compKnown {
				compensation, compKnown = e.PreviousCompensation, true
			}
			if math.Abs(e.PreviousCompensation-compensation) > compensationEpsilon {
				return NewEventConsistencyError(s.year, id,
					fmt.Sprintf("previous_compensation %.2f does not match compensation in effect %.2f",
						e.PreviousCompensation, compensation), lastComp, e)
			}
			if e.Compensation+compensationEpsilon < e.PreviousCompensation {
				return NewEventConsistencyError(s.year, id,
					fmt.Sprintf("%s lowers compensation from %.2f to %.2f", e.Type, e.PreviousCompensation, e.Compensation),
					lastComp, e)
			}
			compensation = e.Compensation
			lastComp = e

		case EventTypeEnrollment:
			if enrolled {
				return NewEventConsistencyError(s.year, id, "enrollment event for an enrolled employee", nil, e)
			}
			enrolled, deferral = true, e.DeferralRate

		case EventTypeEnrollmentChange:
			if !enrolled {
				return NewEventConsistencyError(s.year, id, "deferral change for a non-participant", nil, e)
			}
			if math.Abs(e.PreviousDeferralRate-deferral) > 1e-9 {
				return NewEventConsistencyError(s.year, id,
					fmt.Sprintf("previous_deferral_rate %.4f does not match rate in effect %.4f",
						e.PreviousDeferralRate, deferral), nil, e)
			}
			deferral = e.DeferralRate

		case EventTypeContribution:
			if !enrolled {
				return NewEventConsistencyError(s.year, id, "contribution event for a non-participant", nil, e)
			}

		case EventTypeTermination:
			terminal = e

		case EventTypeUnknown:
			return NewEventConsistencyError(s.year, id, "unknown event type", nil, e)
		}
	}
	return nil
}

// AssignEventIDs sets name-based IDs derived from the seed and each event's
// canonical position, so identical runs produce identical IDs.
func AssignEventIDs(seed int64, events []Event) {
	for i := range events {
		e := &events[i]
		name := fmt.Sprintf("%d|%d|%s|%s|%s|%d",
			seed, e.SimulationYear, e.EmployeeID, e.Type, e.EffectiveDate.Format(time.DateOnly), e.Sequence)
		e.ID = uuid.NewSHA1(eventNamespace, []byte(name)).String()
	}
}
