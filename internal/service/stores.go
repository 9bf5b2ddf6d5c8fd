package service

import (
	"context"
	"time"

	"github.com/classkit/classkit/internal/model"
	"github.com/google/uuid"
)

// Store interfaces consumed by the services. The pgx repositories in
// internal/repository satisfy them; tests use in-memory fakes.
//
// The store model is deliberately narrow: find by filter, insert, and
// conditional update-one. No multi-document transactions exist, so every
// invariant is enforced by a write whose filter re-checks its precondition.

type EventStore interface {
	Create(ctx context.Context, ev *model.Event) error
	GetByID(ctx context.Context, id int64) (*model.Event, error)
	Update(ctx context.Context, ev *model.Event) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	ListByClass(ctx context.Context, classID int64) ([]*model.Event, error)
}

type ObligationStore interface {
	// Insert reports false when the (event, student, guardian) triple is
	// already covered.
	Insert(ctx context.Context, ob *model.Obligation) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.Obligation, error)
	GetSignedByEventStudent(ctx context.Context, eventID, studentID int64) (*model.Obligation, error)
	ListByGuardian(ctx context.Context, guardianID int64) ([]*model.Obligation, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*model.Obligation, error)
	// MarkSigned is conditioned on ownership and status=pending; false means
	// the guard did not match.
	MarkSigned(ctx context.Context, id, guardianID int64, form []byte, method *model.PaymentMethod, signedAt time.Time) (bool, error)
	MarkUnsigned(ctx context.Context, id, guardianID int64) (bool, error)
	SetCashReceived(ctx context.Context, id int64, receivedAt *time.Time) (bool, error)
	// UpsertTeacherSigned reports false when a signed row already occupies the
	// triple.
	UpsertTeacherSigned(ctx context.Context, ob *model.Obligation) (bool, error)
	DeleteByEvent(ctx context.Context, eventID int64) (int64, error)
	DeleteByPair(ctx context.Context, studentID, guardianID int64) (int64, error)
}

type SlotStore interface {
	Create(ctx context.Context, slot *model.InterviewSlot) error
	GetByID(ctx context.Context, id int64) (*model.InterviewSlot, error)
	ListByClass(ctx context.Context, classID int64) ([]*model.InterviewSlot, error)
	GetClaimedByClassStudent(ctx context.Context, classID, studentID int64) (*model.InterviewSlot, error)
	// Claim and BookManual are conditioned on the slot being free; false means
	// the claim lost a race or the student already holds a slot in the class.
	Claim(ctx context.Context, slotID, studentID, guardianID int64) (bool, error)
	BookManual(ctx context.Context, slotID, studentID int64, name string, email *string) (bool, error)
	// Release is conditioned on the claimant recorded in slot; false means the
	// slot is free or changed hands since the read.
	Release(ctx context.Context, slot *model.InterviewSlot) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAllForClass(ctx context.Context, classID int64) (int64, error)
	DeleteBatch(ctx context.Context, classID int64, batchID uuid.UUID) (int64, error)
}

type RosterStore interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetStudent(ctx context.Context, id int64) (*model.Student, error)
	GetClass(ctx context.Context, id int64) (*model.Class, error)
	ListClassStudents(ctx context.Context, classID int64) ([]*model.Student, error)
	ListStudentGuardians(ctx context.Context, studentID int64) ([]*model.User, error)
	IsTeacherOfClass(ctx context.Context, teacherID, classID int64) (bool, error)
	IsStudentInClass(ctx context.Context, studentID, classID int64) (bool, error)
	IsGuardianInClass(ctx context.Context, guardianID, classID int64) (bool, error)
	IsGuardianOfStudent(ctx context.Context, guardianID, studentID int64) (bool, error)
	LinkGuardian(ctx context.Context, studentID, guardianID int64) (bool, error)
	UnlinkGuardian(ctx context.Context, studentID, guardianID int64) (bool, error)
}

type InboxStore interface {
	GuardianInbox(ctx context.Context, guardianID int64) ([]*model.InboxEntry, error)
}
