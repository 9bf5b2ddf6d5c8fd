package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/classkit/classkit/internal/model"
	"github.com/classkit/classkit/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type EventRepository struct {
	*base.Repository
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{Repository: base.NewRepository(pool)}
}

// Money columns are cast to text on the way out and bound as text on the way
// in; numeric stays authoritative in the database.
const eventColumns = `
	id, school_id, class_id, title, description, start_at, end_at, visibility,
	requires_form, cost::text, occurrence_dates, cost_per_occurrence::text,
	form_blob, form_due_date, created_by, created_at, updated_at`

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, ev *model.Event) error {
	query := `
		INSERT INTO events (
			school_id, class_id, title, description, start_at, end_at, visibility,
			requires_form, cost, occurrence_dates, cost_per_occurrence,
			form_blob, form_due_date, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		ev.SchoolID,
		ev.ClassID,
		ev.Title,
		ev.Description,
		ev.StartAt,
		ev.EndAt,
		ev.Visibility,
		ev.RequiresForm,
		decimalText(ev.Cost),
		ev.OccurrenceDates,
		decimalText(ev.CostPerOccurrence),
		ev.FormBlob,
		ev.FormDueDate,
		ev.CreatedBy,
	).Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	return nil
}

// GetByID returns the event or nil when absent.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	ev, err := scanEvent(r.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event by id: %w", err)
	}

	return ev, nil
}

// Update rewrites all mutable fields. The service layer owns the
// cost/occurrence exclusivity normalization before calling this.
func (r *EventRepository) Update(ctx context.Context, ev *model.Event) (bool, error) {
	query := `
		UPDATE events
		SET title = $2, description = $3, start_at = $4, end_at = $5,
		    visibility = $6, requires_form = $7, cost = $8, occurrence_dates = $9,
		    cost_per_occurrence = $10, form_blob = $11, form_due_date = $12,
		    updated_at = now()
		WHERE id = $1
	`

	affected, err := r.ExecAffected(
		ctx, query,
		ev.ID,
		ev.Title,
		ev.Description,
		ev.StartAt,
		ev.EndAt,
		ev.Visibility,
		ev.RequiresForm,
		decimalText(ev.Cost),
		ev.OccurrenceDates,
		decimalText(ev.CostPerOccurrence),
		ev.FormBlob,
		ev.FormDueDate,
	)
	if err != nil {
		return false, fmt.Errorf("update event: %w", err)
	}

	return affected > 0, nil
}

// Delete removes the event row. Obligation cascade is the service's job and
// runs before this.
func (r *EventRepository) Delete(ctx context.Context, id int64) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	return affected > 0, nil
}

// ListByClass returns all events scoped to a class, newest first.
func (r *EventRepository) ListByClass(ctx context.Context, classID int64) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE class_id = $1 ORDER BY start_at DESC`

	rows, err := r.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("list events by class: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var ev model.Event
	var cost, costPerOccurrence *string

	err := row.Scan(
		&ev.ID,
		&ev.SchoolID,
		&ev.ClassID,
		&ev.Title,
		&ev.Description,
		&ev.StartAt,
		&ev.EndAt,
		&ev.Visibility,
		&ev.RequiresForm,
		&cost,
		&ev.OccurrenceDates,
		&costPerOccurrence,
		&ev.FormBlob,
		&ev.FormDueDate,
		&ev.CreatedBy,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ev.Cost, err = parseDecimal(cost); err != nil {
		return nil, err
	}
	if ev.CostPerOccurrence, err = parseDecimal(costPerOccurrence); err != nil {
		return nil, err
	}

	return &ev, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", *s, err)
	}
	return &d, nil
}
