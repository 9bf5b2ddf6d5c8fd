package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/classkit/classkit/internal/model"
	"github.com/classkit/classkit/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

const slotColumns = `
	id, class_id, batch_id, start_at, end_at, student_id, guardian_id,
	manual_guardian_name, manual_guardian_email, created_by, created_at`

// Create inserts one interview slot.
func (r *SlotRepository) Create(ctx context.Context, slot *model.InterviewSlot) error {
	query := `
		INSERT INTO interview_slots (class_id, batch_id, start_at, end_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.ClassID,
		slot.BatchID,
		slot.StartAt,
		slot.EndAt,
		slot.CreatedBy,
	).Scan(&slot.ID, &slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("create interview slot: %w", err)
	}

	return nil
}

// GetByID returns the slot or nil when absent.
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.InterviewSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM interview_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListByClass returns all slots of a class ordered by start time.
func (r *SlotRepository) ListByClass(ctx context.Context, classID int64) ([]*model.InterviewSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM interview_slots WHERE class_id = $1 ORDER BY start_at`

	rows, err := r.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("list slots by class: %w", err)
	}
	defer rows.Close()

	var slots []*model.InterviewSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// GetClaimedByClassStudent returns the slot a student already holds in a
// class, or nil. The partial unique index guarantees at most one.
func (r *SlotRepository) GetClaimedByClassStudent(ctx context.Context, classID, studentID int64) (*model.InterviewSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM interview_slots
		WHERE class_id = $1 AND student_id = $2
		LIMIT 1
	`

	slot, err := scanSlot(r.QueryRow(ctx, query, classID, studentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get claimed slot: %w", err)
	}

	return slot, nil
}

// Claim assigns a free slot to a (student, guardian) pair. The filter re-checks
// that the slot is still free; a unique violation on (class_id, student_id)
// means the student grabbed another slot in the meantime. Both cases report
// false.
func (r *SlotRepository) Claim(ctx context.Context, slotID, studentID, guardianID int64) (bool, error) {
	query := `
		UPDATE interview_slots
		SET student_id = $2, guardian_id = $3
		WHERE id = $1 AND student_id IS NULL
	`

	affected, err := r.ExecAffected(ctx, query, slotID, studentID, guardianID)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("claim slot: %w", err)
	}

	return affected > 0, nil
}

// BookManual assigns a free slot on behalf of an account-less parent.
func (r *SlotRepository) BookManual(ctx context.Context, slotID, studentID int64, name string, email *string) (bool, error) {
	query := `
		UPDATE interview_slots
		SET student_id = $2, manual_guardian_name = $3, manual_guardian_email = $4
		WHERE id = $1 AND student_id IS NULL
	`

	affected, err := r.ExecAffected(ctx, query, slotID, studentID, name, email)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("book slot manually: %w", err)
	}

	return affected > 0, nil
}

// Release frees a claimed slot, clearing all four claim fields in one write.
// The filter re-checks the claimant the caller read, so a stale release cannot
// free a slot that changed hands in between.
func (r *SlotRepository) Release(ctx context.Context, slot *model.InterviewSlot) (bool, error) {
	query := `
		UPDATE interview_slots
		SET student_id = NULL, guardian_id = NULL,
		    manual_guardian_name = NULL, manual_guardian_email = NULL
		WHERE id = $1 AND student_id = $2
		  AND guardian_id IS NOT DISTINCT FROM $3
		  AND manual_guardian_email IS NOT DISTINCT FROM $4
	`

	affected, err := r.ExecAffected(ctx, query, slot.ID, slot.StudentID, slot.GuardianID, slot.ManualGuardianEmail)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}

	return affected > 0, nil
}

// Delete removes one slot.
func (r *SlotRepository) Delete(ctx context.Context, id int64) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM interview_slots WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete slot: %w", err)
	}
	return affected > 0, nil
}

// DeleteAllForClass removes every slot of a class.
func (r *SlotRepository) DeleteAllForClass(ctx context.Context, classID int64) (int64, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM interview_slots WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("delete slots for class: %w", err)
	}
	return affected, nil
}

// DeleteBatch removes one creation batch within a class.
func (r *SlotRepository) DeleteBatch(ctx context.Context, classID int64, batchID uuid.UUID) (int64, error) {
	query := `DELETE FROM interview_slots WHERE class_id = $1 AND batch_id = $2`

	affected, err := r.ExecAffected(ctx, query, classID, batchID)
	if err != nil {
		return 0, fmt.Errorf("delete slot batch: %w", err)
	}
	return affected, nil
}

func scanSlot(row pgx.Row) (*model.InterviewSlot, error) {
	var slot model.InterviewSlot

	err := row.Scan(
		&slot.ID,
		&slot.ClassID,
		&slot.BatchID,
		&slot.StartAt,
		&slot.EndAt,
		&slot.StudentID,
		&slot.GuardianID,
		&slot.ManualGuardianName,
		&slot.ManualGuardianEmail,
		&slot.CreatedBy,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &slot, nil
}
