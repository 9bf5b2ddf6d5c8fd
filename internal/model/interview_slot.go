package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// InterviewSlot is one bookable parent-interview window for a class. Slots are
// created in bulk (BatchID groups one creation call) and claimed either by a
// guardian account or manually by the teacher for an account-less parent.
type InterviewSlot struct {
	ID      int64     `json:"id"`
	ClassID int64     `json:"class_id"`
	BatchID uuid.UUID `json:"batch_id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`

	StudentID           *int64  `json:"student_id"`
	GuardianID          *int64  `json:"guardian_id"`
	ManualGuardianName  *string `json:"manual_guardian_name"`
	ManualGuardianEmail *string `json:"manual_guardian_email"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// IsClaimed reports whether the slot is taken: a student is set and there is
// either a guardian account or a manual name/email behind the claim.
func (s *InterviewSlot) IsClaimed() bool {
	if s.StudentID == nil {
		return false
	}
	return s.GuardianID != nil || s.ManualGuardianName != nil || s.ManualGuardianEmail != nil
}

// ClaimedBy identifies who holds a claimed slot. Ownership is dual-mode: a
// slot is the caller's if their guardian id matches, or if the teacher booked
// it manually against an email the caller later registered with.
type ClaimedBy interface {
	ResolvesTo(caller *User) bool
}

// GuardianClaim is a self-service claim by a guardian account.
type GuardianClaim struct {
	GuardianID int64
}

func (c GuardianClaim) ResolvesTo(caller *User) bool {
	return caller != nil && caller.ID == c.GuardianID
}

// ManualClaim is a teacher-administered booking for an account-less parent.
type ManualClaim struct {
	Name  string
	Email string
}

func (c ManualClaim) ResolvesTo(caller *User) bool {
	if caller == nil || c.Email == "" {
		return false
	}
	return strings.EqualFold(c.Email, caller.Email)
}

// Claimant returns who holds the slot, or nil when it is free.
func (s *InterviewSlot) Claimant() ClaimedBy {
	if !s.IsClaimed() {
		return nil
	}
	if s.GuardianID != nil {
		return GuardianClaim{GuardianID: *s.GuardianID}
	}
	mc := ManualClaim{}
	if s.ManualGuardianName != nil {
		mc.Name = *s.ManualGuardianName
	}
	if s.ManualGuardianEmail != nil {
		mc.Email = *s.ManualGuardianEmail
	}
	return mc
}
