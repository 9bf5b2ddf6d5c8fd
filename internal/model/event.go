package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Visibility string

const (
	VisibilityClass   Visibility = "class"
	VisibilitySchool  Visibility = "school"
	VisibilityPrivate Visibility = "private"
)

// Event is one scheduled activity, optionally carrying a cost and/or a
// permission form requirement. ClassID is nil for school-wide events.
type Event struct {
	ID          int64      `json:"id"`
	SchoolID    int64      `json:"school_id"`
	ClassID     *int64     `json:"class_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       time.Time  `json:"end_at"`
	Visibility  Visibility `json:"visibility"`

	RequiresForm bool `json:"requires_form"`

	// Cost is the single-occurrence price. Mutually exclusive with
	// CostPerOccurrence: a recurring event never carries Cost, a non-recurring
	// event never carries CostPerOccurrence. The update path normalizes this.
	Cost              *decimal.Decimal `json:"cost"`
	OccurrenceDates   []time.Time      `json:"occurrence_dates"`
	CostPerOccurrence *decimal.Decimal `json:"cost_per_occurrence"`

	FormBlob    []byte     `json:"-"`
	FormDueDate *time.Time `json:"form_due_date"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRecurring reports whether the event spans multiple occurrence dates.
// Zero or one date means a one-off.
func (e *Event) IsRecurring() bool {
	return len(e.OccurrenceDates) > 1
}

// EffectiveCost resolves the payable amount for the whole occurrence set.
// Recurring events with a positive per-occurrence price pay price × occurrences;
// otherwise the single Cost applies if positive. The second return is false
// when the event is free.
func (e *Event) EffectiveCost() (decimal.Decimal, bool) {
	if e.IsRecurring() && e.CostPerOccurrence != nil && e.CostPerOccurrence.IsPositive() {
		n := decimal.NewFromInt(int64(len(e.OccurrenceDates)))
		return e.CostPerOccurrence.Mul(n), true
	}
	if e.Cost != nil && e.Cost.IsPositive() {
		return *e.Cost, true
	}
	return decimal.Zero, false
}

// IsPaymentBearing reports whether signing this event involves money.
func (e *Event) IsPaymentBearing() bool {
	_, ok := e.EffectiveCost()
	return ok
}

// IsObligationBearing reports whether the event fans out permission slips at all.
func (e *Event) IsObligationBearing() bool {
	return e.RequiresForm || e.IsPaymentBearing()
}

// InFlight reports whether the event has not yet fully elapsed: its end is in
// the future, or a recurring event still has an occurrence today or later.
// Backfill only repairs in-flight events.
func (e *Event) InFlight(now time.Time) bool {
	if e.EndAt.After(now) {
		return true
	}
	if !e.IsRecurring() {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, d := range e.OccurrenceDates {
		if !d.Before(today) {
			return true
		}
	}
	return false
}
