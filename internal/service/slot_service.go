package service

import (
	"context"
	"fmt"

	"github.com/classkit/classkit/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxSlotsPerBatch caps one bulk creation call.
const MaxSlotsPerBatch = 100

// SlotService is the interview-slot claim engine. Exclusivity is enforced by
// read-validate-conditional-write: re-read the slot immediately before the
// claim, validate against current state, then perform a single field-set
// update whose filter re-checks that the slot is still free. Claims are
// human-paced; no locking beyond that is used.
type SlotService struct {
	slots  SlotStore
	roster RosterStore
	logger *zap.Logger
}

func NewSlotService(slots SlotStore, roster RosterStore, logger *zap.Logger) *SlotService {
	return &SlotService{
		slots:  slots,
		roster: roster,
		logger: logger,
	}
}

// CreateSlots bulk-creates interview windows for a class. All slots of one
// call share a batch id so a mistaken batch can be withdrawn as a unit.
func (s *SlotService) CreateSlots(ctx context.Context, teacherID, classID int64, windows []SlotWindow) (int, uuid.UUID, error) {
	if len(windows) == 0 {
		return 0, uuid.Nil, model.Invalidf("no slot windows supplied")
	}
	if len(windows) > MaxSlotsPerBatch {
		return 0, uuid.Nil, model.Invalidf("at most %d slots per call", MaxSlotsPerBatch)
	}

	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, classID)
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return 0, uuid.Nil, model.ErrNotFound
	}

	for _, w := range windows {
		if err := validateInput(w); err != nil {
			return 0, uuid.Nil, err
		}
		if !w.EndAt.After(w.StartAt) {
			return 0, uuid.Nil, model.Invalidf("slot window end must be after start")
		}
	}

	batch := uuid.New()
	var created int
	for _, w := range windows {
		slot := &model.InterviewSlot{
			ClassID:   classID,
			BatchID:   batch,
			StartAt:   w.StartAt,
			EndAt:     w.EndAt,
			CreatedBy: teacherID,
		}
		if err := s.slots.Create(ctx, slot); err != nil {
			return created, batch, fmt.Errorf("create slot: %w", err)
		}
		created++
	}

	s.logger.Info("Interview slots created",
		zap.Int64("class_id", classID),
		zap.Int64("teacher_id", teacherID),
		zap.String("batch_id", batch.String()),
		zap.Int("count", created),
	)

	return created, batch, nil
}

// Claim books a slot for one of the caller's children. A child holds at most
// one slot per class.
func (s *SlotService) Claim(ctx context.Context, guardianID, slotID, studentID int64) error {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return model.ErrNotFound
	}
	if slot.IsClaimed() {
		return model.Conflictf("slot is already claimed")
	}

	if err := s.checkGuardianEligibility(ctx, guardianID, studentID, slot.ClassID); err != nil {
		return err
	}

	held, err := s.slots.GetClaimedByClassStudent(ctx, slot.ClassID, studentID)
	if err != nil {
		return fmt.Errorf("check existing claim: %w", err)
	}
	if held != nil {
		return model.Conflictf("student already has a slot in this class")
	}

	ok, err := s.slots.Claim(ctx, slotID, studentID, guardianID)
	if err != nil {
		return fmt.Errorf("claim slot: %w", err)
	}
	if !ok {
		return model.Conflictf("slot is already claimed")
	}

	s.logger.Info("Slot claimed",
		zap.Int64("slot_id", slotID),
		zap.Int64("guardian_id", guardianID),
		zap.Int64("student_id", studentID),
	)

	return nil
}

// Unclaim frees a slot the caller holds. Ownership is dual-mode: a guardian
// claim matches by id, a manual booking matches by the caller's registered
// email (the parent may have created an account after the teacher booked for
// them).
func (s *SlotService) Unclaim(ctx context.Context, guardianID, slotID int64) error {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return model.ErrNotFound
	}

	claimant := slot.Claimant()
	if claimant == nil {
		return model.Conflictf("slot is not claimed")
	}

	caller, err := s.roster.GetUser(ctx, guardianID)
	if err != nil {
		return fmt.Errorf("get caller: %w", err)
	}
	if caller == nil || !claimant.ResolvesTo(caller) {
		return model.ErrNotFound
	}

	ok, err := s.slots.Release(ctx, slot)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if !ok {
		return model.Conflictf("slot is no longer held by this claimant")
	}

	s.logger.Info("Slot unclaimed",
		zap.Int64("slot_id", slotID),
		zap.Int64("guardian_id", guardianID),
	)

	return nil
}

// BookManually books a slot on behalf of an account-less parent. Same checks
// as Claim, but against teacher-class ownership, and the claim records a name
// and optional email instead of a guardian id.
func (s *SlotService) BookManually(ctx context.Context, teacherID, slotID, studentID int64, in ManualBookingInput) error {
	if err := validateInput(in); err != nil {
		return err
	}

	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return model.ErrNotFound
	}
	if slot.IsClaimed() {
		return model.Conflictf("slot is already claimed")
	}

	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, slot.ClassID)
	if err != nil {
		return fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return model.ErrNotFound
	}

	enrolled, err := s.roster.IsStudentInClass(ctx, studentID, slot.ClassID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return model.ErrNotFound
	}

	held, err := s.slots.GetClaimedByClassStudent(ctx, slot.ClassID, studentID)
	if err != nil {
		return fmt.Errorf("check existing claim: %w", err)
	}
	if held != nil {
		return model.Conflictf("student already has a slot in this class")
	}

	ok, err := s.slots.BookManual(ctx, slotID, studentID, in.Name, in.Email)
	if err != nil {
		return fmt.Errorf("book slot manually: %w", err)
	}
	if !ok {
		return model.Conflictf("slot is already claimed")
	}

	s.logger.Info("Slot booked manually",
		zap.Int64("slot_id", slotID),
		zap.Int64("teacher_id", teacherID),
		zap.Int64("student_id", studentID),
	)

	return nil
}

// Unbook frees any claimed slot in a class the teacher owns.
func (s *SlotService) Unbook(ctx context.Context, teacherID, slotID int64) error {
	slot, err := s.authorizedSlot(ctx, teacherID, slotID)
	if err != nil {
		return err
	}
	if !slot.IsClaimed() {
		return model.Conflictf("slot is not claimed")
	}

	ok, err := s.slots.Release(ctx, slot)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if !ok {
		return model.Conflictf("slot is no longer held by this claimant")
	}

	s.logger.Info("Slot unbooked",
		zap.Int64("slot_id", slotID),
		zap.Int64("teacher_id", teacherID),
	)

	return nil
}

// DeleteSlot removes one slot, claimed or not.
func (s *SlotService) DeleteSlot(ctx context.Context, teacherID, slotID int64) error {
	slot, err := s.authorizedSlot(ctx, teacherID, slotID)
	if err != nil {
		return err
	}

	ok, err := s.slots.Delete(ctx, slot.ID)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if !ok {
		return model.ErrNotFound
	}

	s.logger.Info("Slot deleted",
		zap.Int64("slot_id", slotID),
		zap.Int64("teacher_id", teacherID),
	)

	return nil
}

// DeleteAllForClass wipes a class's interview schedule.
func (s *SlotService) DeleteAllForClass(ctx context.Context, teacherID, classID int64) (int64, error) {
	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, classID)
	if err != nil {
		return 0, fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return 0, model.ErrNotFound
	}

	removed, err := s.slots.DeleteAllForClass(ctx, classID)
	if err != nil {
		return 0, fmt.Errorf("delete slots for class: %w", err)
	}

	s.logger.Info("Class slots deleted",
		zap.Int64("class_id", classID),
		zap.Int64("teacher_id", teacherID),
		zap.Int64("count", removed),
	)

	return removed, nil
}

// DeleteBatch withdraws one creation batch.
func (s *SlotService) DeleteBatch(ctx context.Context, teacherID, classID int64, batchID uuid.UUID) (int64, error) {
	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, classID)
	if err != nil {
		return 0, fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return 0, model.ErrNotFound
	}

	removed, err := s.slots.DeleteBatch(ctx, classID, batchID)
	if err != nil {
		return 0, fmt.Errorf("delete slot batch: %w", err)
	}

	s.logger.Info("Slot batch deleted",
		zap.Int64("class_id", classID),
		zap.Int64("teacher_id", teacherID),
		zap.String("batch_id", batchID.String()),
		zap.Int64("count", removed),
	)

	return removed, nil
}

// checkGuardianEligibility verifies the guardian-student link, the student's
// enrollment and the guardian's class membership. All failures fold into
// not-found.
func (s *SlotService) checkGuardianEligibility(ctx context.Context, guardianID, studentID, classID int64) error {
	linked, err := s.roster.IsGuardianOfStudent(ctx, guardianID, studentID)
	if err != nil {
		return fmt.Errorf("check guardian link: %w", err)
	}
	if !linked {
		return model.ErrNotFound
	}

	enrolled, err := s.roster.IsStudentInClass(ctx, studentID, classID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return model.ErrNotFound
	}

	joined, err := s.roster.IsGuardianInClass(ctx, guardianID, classID)
	if err != nil {
		return fmt.Errorf("check class membership: %w", err)
	}
	if !joined {
		return model.ErrNotFound
	}

	return nil
}

func (s *SlotService) authorizedSlot(ctx context.Context, teacherID, slotID int64) (*model.InterviewSlot, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, model.ErrNotFound
	}

	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, slot.ClassID)
	if err != nil {
		return nil, fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return nil, model.ErrNotFound
	}

	return slot, nil
}
