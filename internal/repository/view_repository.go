package repository

import (
	"context"
	"fmt"

	"github.com/classkit/classkit/internal/model"
	"github.com/classkit/classkit/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ViewRepository serves the read-side joins. Everything here is a plain
// multi-table SELECT; no writes.
type ViewRepository struct {
	*base.Repository
}

func NewViewRepository(pool *pgxpool.Pool) *ViewRepository {
	return &ViewRepository{Repository: base.NewRepository(pool)}
}

// GuardianInbox returns a guardian's obligations joined to their event, class
// and student, pending first, then by due date.
func (r *ViewRepository) GuardianInbox(ctx context.Context, guardianID int64) ([]*model.InboxEntry, error) {
	query := `
		SELECT o.id, o.event_id, o.class_id, o.student_id, o.guardian_id, o.status,
		       o.teacher_submitted, o.signed_at, o.submitted_form, o.payment_method,
		       o.cash_received_at, o.created_at,
		       e.title, e.start_at, e.form_due_date,
		       c.name,
		       COALESCE(s.full_name, '')
		FROM obligations o
		JOIN events e ON e.id = o.event_id
		JOIN classes c ON c.id = o.class_id
		LEFT JOIN students s ON s.id = o.student_id
		WHERE o.guardian_id = $1
		ORDER BY (o.status = 'pending') DESC, e.form_due_date ASC NULLS LAST, e.start_at ASC
	`

	rows, err := r.Query(ctx, query, guardianID)
	if err != nil {
		return nil, fmt.Errorf("guardian inbox: %w", err)
	}
	defer rows.Close()

	var entries []*model.InboxEntry
	for rows.Next() {
		var ob model.Obligation
		var method *string
		entry := &model.InboxEntry{Obligation: &ob}

		err := rows.Scan(
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
			&entry.EventTitle,
			&entry.EventStartAt,
			&entry.FormDueDate,
			&entry.ClassName,
			&entry.StudentName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan inbox entry: %w", err)
		}

		if method != nil {
			m := model.PaymentMethod(*method)
			ob.PaymentMethod = &m
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
