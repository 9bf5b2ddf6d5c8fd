package model

import "time"

// Read-side view records. These are join results, not stored documents.

// InboxEntry is one obligation in a guardian's inbox, joined to its event,
// class and student.
type InboxEntry struct {
	Obligation *Obligation `json:"obligation"`

	EventTitle   string     `json:"event_title"`
	EventStartAt time.Time  `json:"event_start_at"`
	FormDueDate  *time.Time `json:"form_due_date"`
	ClassName    string     `json:"class_name"`
	StudentName  string     `json:"student_name"`
}

// ObligationDetail is one obligation annotated with display names for the
// per-event status board.
type ObligationDetail struct {
	Obligation *Obligation `json:"obligation"`

	StudentName  string `json:"student_name"`
	GuardianName string `json:"guardian_name"`
}

// EventStatus buckets an event's class roster by slip progress. Students with
// no linked guardians surface here only; no Obligation row is ever stored for
// them.
type EventStatus struct {
	Event      *Event              `json:"event"`
	Pending    []*ObligationDetail `json:"pending"`
	Signed     []*ObligationDetail `json:"signed"`
	NoGuardian []*Student          `json:"no_guardian"`
}

// SlotView is one interview slot annotated with the claimant's display name.
type SlotView struct {
	Slot *InterviewSlot `json:"slot"`

	StudentName  string `json:"student_name,omitempty"`
	ClaimantName string `json:"claimant_name,omitempty"`
}
