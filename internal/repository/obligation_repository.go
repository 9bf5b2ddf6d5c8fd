package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classkit/classkit/internal/model"
	"github.com/classkit/classkit/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ObligationRepository struct {
	*base.Repository
}

func NewObligationRepository(pool *pgxpool.Pool) *ObligationRepository {
	return &ObligationRepository{Repository: base.NewRepository(pool)}
}

const obligationColumns = `
	id, event_id, class_id, student_id, guardian_id, status, teacher_submitted,
	signed_at, submitted_form, payment_method, cash_received_at, created_at`

// Insert creates a pending obligation. The (event_id, student_id, guardian_id)
// unique key makes fan-out and backfill idempotent: a duplicate insert is
// swallowed and reported as not-inserted, never as an error.
func (r *ObligationRepository) Insert(ctx context.Context, ob *model.Obligation) (bool, error) {
	query := `
		INSERT INTO obligations (event_id, class_id, student_id, guardian_id, status, teacher_submitted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, student_id, guardian_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		ob.EventID,
		ob.ClassID,
		ob.StudentID,
		ob.GuardianID,
		ob.Status,
		ob.TeacherSubmitted,
	).Scan(&ob.ID, &ob.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert obligation: %w", err)
	}

	return true, nil
}

// GetByID returns the obligation or nil when absent.
func (r *ObligationRepository) GetByID(ctx context.Context, id int64) (*model.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE id = $1`

	ob, err := scanObligation(r.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get obligation by id: %w", err)
	}

	return ob, nil
}

// GetSignedByEventStudent returns the signed obligation for one student on one
// event, or nil. Used to keep teacher direct uploads from overwriting a real
// parent submission.
func (r *ObligationRepository) GetSignedByEventStudent(ctx context.Context, eventID, studentID int64) (*model.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE event_id = $1 AND student_id = $2 AND status = 'signed'
		LIMIT 1
	`

	ob, err := scanObligation(r.QueryRow(ctx, query, eventID, studentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get signed obligation: %w", err)
	}

	return ob, nil
}

// ListByGuardian returns all obligations addressed to a guardian.
func (r *ObligationRepository) ListByGuardian(ctx context.Context, guardianID int64) ([]*model.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE guardian_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, guardianID)
}

// ListByEvent returns all obligations fanned out for an event.
func (r *ObligationRepository) ListByEvent(ctx context.Context, eventID int64) ([]*model.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE event_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, eventID)
}

// MarkSigned transitions pending → signed for the calling guardian. The filter
// re-checks ownership and status, so a concurrent double-submit loses the race
// harmlessly (returns false).
func (r *ObligationRepository) MarkSigned(ctx context.Context, id, guardianID int64, form []byte, method *model.PaymentMethod, signedAt time.Time) (bool, error) {
	query := `
		UPDATE obligations
		SET status = 'signed', signed_at = $3, submitted_form = $4, payment_method = $5
		WHERE id = $1 AND guardian_id = $2 AND status = 'pending'
	`

	affected, err := r.ExecAffected(ctx, query, id, guardianID, signedAt, form, methodText(method))
	if err != nil {
		return false, fmt.Errorf("mark obligation signed: %w", err)
	}

	return affected > 0, nil
}

// MarkUnsigned transitions signed → pending and clears everything the sign set.
func (r *ObligationRepository) MarkUnsigned(ctx context.Context, id, guardianID int64) (bool, error) {
	query := `
		UPDATE obligations
		SET status = 'pending', signed_at = NULL, submitted_form = NULL,
		    payment_method = NULL, cash_received_at = NULL
		WHERE id = $1 AND guardian_id = $2 AND status = 'signed'
	`

	affected, err := r.ExecAffected(ctx, query, id, guardianID)
	if err != nil {
		return false, fmt.Errorf("mark obligation unsigned: %w", err)
	}

	return affected > 0, nil
}

// SetCashReceived sets or clears the cash receipt timestamp on a signed slip.
// The filter re-checks that the slip still resolves to cash (an explicit cash
// method, or a teacher submission with no method), so a concurrent re-sign as
// online cannot end up stamped as cash-received.
func (r *ObligationRepository) SetCashReceived(ctx context.Context, id int64, receivedAt *time.Time) (bool, error) {
	query := `
		UPDATE obligations
		SET cash_received_at = $2
		WHERE id = $1 AND status = 'signed'
		  AND (payment_method = 'cash' OR (payment_method IS NULL AND teacher_submitted))
	`

	affected, err := r.ExecAffected(ctx, query, id, receivedAt)
	if err != nil {
		return false, fmt.Errorf("set cash received: %w", err)
	}

	return affected > 0, nil
}

// UpsertTeacherSigned records a teacher-submitted paper slip as signed. If the
// teacher's own row already exists it is overwritten only while still pending;
// a signed row wins the conflict and the call reports false.
func (r *ObligationRepository) UpsertTeacherSigned(ctx context.Context, ob *model.Obligation) (bool, error) {
	query := `
		INSERT INTO obligations (
			event_id, class_id, student_id, guardian_id, status, teacher_submitted,
			signed_at, submitted_form, payment_method
		)
		VALUES ($1, $2, $3, $4, 'signed', TRUE, $5, $6, $7)
		ON CONFLICT (event_id, student_id, guardian_id) DO UPDATE
		SET status = 'signed', teacher_submitted = TRUE,
		    signed_at = EXCLUDED.signed_at,
		    submitted_form = EXCLUDED.submitted_form,
		    payment_method = EXCLUDED.payment_method
		WHERE obligations.status = 'pending'
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		ob.EventID,
		ob.ClassID,
		ob.StudentID,
		ob.GuardianID,
		ob.SignedAt,
		ob.SubmittedForm,
		methodText(ob.PaymentMethod),
	).Scan(&ob.ID, &ob.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("upsert teacher submission: %w", err)
	}

	return true, nil
}

// DeleteByEvent cascades obligation deletion when an event is removed.
func (r *ObligationRepository) DeleteByEvent(ctx context.Context, eventID int64) (int64, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM obligations WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete obligations by event: %w", err)
	}
	return affected, nil
}

// DeleteByPair cascades obligation deletion when a guardian-student link is
// removed.
func (r *ObligationRepository) DeleteByPair(ctx context.Context, studentID, guardianID int64) (int64, error) {
	query := `DELETE FROM obligations WHERE student_id = $1 AND guardian_id = $2`

	affected, err := r.ExecAffected(ctx, query, studentID, guardianID)
	if err != nil {
		return 0, fmt.Errorf("delete obligations by pair: %w", err)
	}
	return affected, nil
}

func (r *ObligationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*model.Obligation, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	var obligations []*model.Obligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		obligations = append(obligations, ob)
	}

	return obligations, rows.Err()
}

func scanObligation(row pgx.Row) (*model.Obligation, error) {
	var ob model.Obligation
	var method *string

	err := row.Scan(
		&ob.ID,
		&ob.EventID,
		&ob.ClassID,
		&ob.StudentID,
		&ob.GuardianID,
		&ob.Status,
		&ob.TeacherSubmitted,
		&ob.SignedAt,
		&ob.SubmittedForm,
		&method,
		&ob.CashReceivedAt,
		&ob.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if method != nil {
		m := model.PaymentMethod(*method)
		ob.PaymentMethod = &m
	}

	return &ob, nil
}

func methodText(m *model.PaymentMethod) *string {
	if m == nil || *m == model.PaymentMethodNone {
		return nil
	}
	s := string(*m)
	return &s
}
