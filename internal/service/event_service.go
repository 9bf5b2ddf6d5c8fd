package service

import (
	"context"
	"fmt"

	"github.com/classkit/classkit/internal/model"
	"go.uber.org/zap"
)

type EventService struct {
	events      EventStore
	obligations ObligationStore
	roster      RosterStore
	fanout      *FanoutEngine
	logger      *zap.Logger
}

func NewEventService(
	events EventStore,
	obligations ObligationStore,
	roster RosterStore,
	fanout *FanoutEngine,
	logger *zap.Logger,
) *EventService {
	return &EventService{
		events:      events,
		obligations: obligations,
		roster:      roster,
		fanout:      fanout,
		logger:      logger,
	}
}

// CreateEvent stores a new event and, when it is class-scoped and
// obligation-bearing, broadcasts the slip fan-out. Fan-out failures do not
// fail the creation.
func (s *EventService) CreateEvent(ctx context.Context, teacherID int64, in EventInput) (*model.Event, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !in.EndAt.After(in.StartAt) {
		return nil, model.Invalidf("event end must be after start")
	}
	if len(in.FormBlob) > 0 {
		if err := ValidateFormBlob(in.FormBlob); err != nil {
			return nil, err
		}
	}

	caller, err := s.roster.GetUser(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get caller: %w", err)
	}
	if caller == nil || !caller.IsTeacher {
		return nil, model.ErrNotFound
	}
	if in.ClassID != nil {
		teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, *in.ClassID)
		if err != nil {
			return nil, fmt.Errorf("check class teacher: %w", err)
		}
		if !teaches {
			return nil, model.ErrNotFound
		}
	}

	ev := &model.Event{
		SchoolID:          in.SchoolID,
		ClassID:           in.ClassID,
		Title:             in.Title,
		Description:       in.Description,
		StartAt:           in.StartAt,
		EndAt:             in.EndAt,
		Visibility:        in.Visibility,
		RequiresForm:      in.RequiresForm,
		Cost:              in.Cost,
		OccurrenceDates:   in.OccurrenceDates,
		CostPerOccurrence: in.CostPerOccurrence,
		FormBlob:          in.FormBlob,
		FormDueDate:       in.FormDueDate,
		CreatedBy:         teacherID,
	}
	normalizeCost(ev)

	if err := s.events.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info("Event created",
		zap.Int64("event_id", ev.ID),
		zap.Int64("teacher_id", teacherID),
		zap.Bool("requires_form", ev.RequiresForm),
		zap.Bool("payment_bearing", ev.IsPaymentBearing()),
	)

	s.fanout.Broadcast(ctx, ev)

	return ev, nil
}

// UpdateEvent applies a partial update. Optional fields are independently
// clearable; the cost/occurrence exclusivity is re-normalized after every
// patch so the invalid combination is unreachable through this path.
func (s *EventService) UpdateEvent(ctx context.Context, teacherID, eventID int64, patch EventPatch) (*model.Event, error) {
	if err := validateInput(patch); err != nil {
		return nil, err
	}

	ev, err := s.authorizedEvent(ctx, teacherID, eventID)
	if err != nil {
		return nil, err
	}

	applyPatch(ev, patch)

	if !ev.EndAt.After(ev.StartAt) {
		return nil, model.Invalidf("event end must be after start")
	}
	if len(ev.FormBlob) > 0 {
		if err := ValidateFormBlob(ev.FormBlob); err != nil {
			return nil, err
		}
	}
	normalizeCost(ev)

	ok, err := s.events.Update(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if !ok {
		return nil, model.ErrNotFound
	}

	s.logger.Info("Event updated",
		zap.Int64("event_id", ev.ID),
		zap.Int64("teacher_id", teacherID),
	)

	return ev, nil
}

// DeleteEvent removes the event and cascades its obligations.
func (s *EventService) DeleteEvent(ctx context.Context, teacherID, eventID int64) error {
	ev, err := s.authorizedEvent(ctx, teacherID, eventID)
	if err != nil {
		return err
	}

	removed, err := s.obligations.DeleteByEvent(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("cascade obligations: %w", err)
	}

	ok, err := s.events.Delete(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if !ok {
		return model.ErrNotFound
	}

	s.logger.Info("Event deleted",
		zap.Int64("event_id", ev.ID),
		zap.Int64("teacher_id", teacherID),
		zap.Int64("obligations_removed", removed),
	)

	return nil
}

// GetEvent returns an event visible to the caller.
func (s *EventService) GetEvent(ctx context.Context, teacherID, eventID int64) (*model.Event, error) {
	return s.authorizedEvent(ctx, teacherID, eventID)
}

// authorizedEvent loads the event and checks teacher access: class events need
// class-teacher membership, school-wide events belong to their author.
// Authorization failures fold into not-found.
func (s *EventService) authorizedEvent(ctx context.Context, teacherID, eventID int64) (*model.Event, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, model.ErrNotFound
	}

	if ev.ClassID != nil {
		teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, *ev.ClassID)
		if err != nil {
			return nil, fmt.Errorf("check class teacher: %w", err)
		}
		if !teaches {
			return nil, model.ErrNotFound
		}
		return ev, nil
	}

	if ev.CreatedBy != teacherID {
		return nil, model.ErrNotFound
	}
	return ev, nil
}

// normalizeCost enforces the cost/occurrence exclusivity: a recurring event
// never carries a standalone cost, a one-off never carries a per-occurrence
// cost.
func normalizeCost(ev *model.Event) {
	if ev.IsRecurring() {
		ev.Cost = nil
	} else {
		ev.CostPerOccurrence = nil
	}
}

func applyPatch(ev *model.Event, patch EventPatch) {
	if patch.Title != nil {
		ev.Title = *patch.Title
	}
	if patch.Description != nil {
		ev.Description = *patch.Description
	}
	if patch.StartAt != nil {
		ev.StartAt = *patch.StartAt
	}
	if patch.EndAt != nil {
		ev.EndAt = *patch.EndAt
	}
	if patch.Visibility != nil {
		ev.Visibility = *patch.Visibility
	}
	if patch.RequiresForm != nil {
		ev.RequiresForm = *patch.RequiresForm
	}

	if patch.ClearCost {
		ev.Cost = nil
	} else if patch.Cost != nil {
		ev.Cost = patch.Cost
	}

	if patch.ClearOccurrenceDates {
		ev.OccurrenceDates = nil
	} else if patch.OccurrenceDates != nil {
		ev.OccurrenceDates = patch.OccurrenceDates
	}

	if patch.ClearCostPerOccurrence {
		ev.CostPerOccurrence = nil
	} else if patch.CostPerOccurrence != nil {
		ev.CostPerOccurrence = patch.CostPerOccurrence
	}

	if patch.ClearFormBlob {
		ev.FormBlob = nil
	} else if patch.FormBlob != nil {
		ev.FormBlob = patch.FormBlob
	}

	if patch.ClearFormDueDate {
		ev.FormDueDate = nil
	} else if patch.FormDueDate != nil {
		ev.FormDueDate = patch.FormDueDate
	}
}
