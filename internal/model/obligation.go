package model

import "time"

type ObligationStatus string

const (
	ObligationStatusPending ObligationStatus = "pending"
	ObligationStatusSigned  ObligationStatus = "signed"
)

type PaymentMethod string

const (
	PaymentMethodNone   PaymentMethod = ""
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCash   PaymentMethod = "cash"
)

// Obligation is one permission slip: a demand scoped to one event, one class,
// one student and one guardian. At most one exists per
// (event_id, student_id, guardian_id) triple.
//
// A teacher-submitted paper slip is stored with GuardianID set to the teacher's
// own user id and TeacherSubmitted true; that is how "no parent linked" cases
// still get a recorded submission.
type Obligation struct {
	ID               int64            `json:"id"`
	EventID          int64            `json:"event_id"`
	ClassID          int64            `json:"class_id"`
	StudentID        *int64           `json:"student_id"` // nil only on legacy rows
	GuardianID       int64            `json:"guardian_id"`
	Status           ObligationStatus `json:"status"`
	TeacherSubmitted bool             `json:"teacher_submitted"`
	SignedAt         *time.Time       `json:"signed_at"`
	SubmittedForm    []byte           `json:"-"`
	PaymentMethod    *PaymentMethod   `json:"payment_method"`
	CashReceivedAt   *time.Time       `json:"cash_received_at"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IsSigned reports whether the slip has been completed.
func (o *Obligation) IsSigned() bool {
	return o.Status == ObligationStatusSigned
}

// ResolvedPaymentMethod returns the effective payment method. A
// teacher-submitted slip with no explicit method counts as cash: paper
// submissions are assumed cash unless stated.
func (o *Obligation) ResolvedPaymentMethod() PaymentMethod {
	if o.PaymentMethod != nil && *o.PaymentMethod != PaymentMethodNone {
		return *o.PaymentMethod
	}
	if o.TeacherSubmitted {
		return PaymentMethodCash
	}
	return PaymentMethodNone
}
