package service

import (
	"context"
	"fmt"

	"github.com/classkit/classkit/internal/model"
	"go.uber.org/zap"
)

// ProjectionService builds the read-side views. It only joins; every fact it
// reports is owned by the write-side services.
type ProjectionService struct {
	events      EventStore
	obligations ObligationStore
	slots       SlotStore
	roster      RosterStore
	inbox       InboxStore
	logger      *zap.Logger
}

func NewProjectionService(
	events EventStore,
	obligations ObligationStore,
	slots SlotStore,
	roster RosterStore,
	inbox InboxStore,
	logger *zap.Logger,
) *ProjectionService {
	return &ProjectionService{
		events:      events,
		obligations: obligations,
		slots:       slots,
		roster:      roster,
		inbox:       inbox,
		logger:      logger,
	}
}

// GuardianInbox returns all of a guardian's slips joined to event, class and
// student, pending first.
func (s *ProjectionService) GuardianInbox(ctx context.Context, guardianID int64) ([]*model.InboxEntry, error) {
	entries, err := s.inbox.GuardianInbox(ctx, guardianID)
	if err != nil {
		return nil, fmt.Errorf("guardian inbox: %w", err)
	}
	return entries, nil
}

// EventStatus buckets an event's roster by slip progress for the teacher's
// status board. Students with no linked guardian have no stored slip and
// appear in the no-guardian bucket only here.
func (s *ProjectionService) EventStatus(ctx context.Context, teacherID, eventID int64) (*model.EventStatus, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, model.ErrNotFound
	}
	if ev.ClassID == nil {
		return nil, model.Invalidf("status board exists only for class events")
	}

	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, *ev.ClassID)
	if err != nil {
		return nil, fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return nil, model.ErrNotFound
	}

	obligations, err := s.obligations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}

	students, err := s.roster.ListClassStudents(ctx, *ev.ClassID)
	if err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}

	studentNames := make(map[int64]string, len(students))
	for _, st := range students {
		studentNames[st.ID] = st.FullName
	}

	obligationsByStudent := make(map[int64]int)
	status := &model.EventStatus{Event: ev}
	userNames := map[int64]string{}

	for _, ob := range obligations {
		detail := &model.ObligationDetail{Obligation: ob}
		if ob.StudentID != nil {
			obligationsByStudent[*ob.StudentID]++
			detail.StudentName = studentNames[*ob.StudentID]
		}
		detail.GuardianName, err = s.userName(ctx, userNames, ob.GuardianID)
		if err != nil {
			return nil, err
		}

		if ob.IsSigned() {
			status.Signed = append(status.Signed, detail)
		} else {
			status.Pending = append(status.Pending, detail)
		}
	}

	for _, st := range students {
		if obligationsByStudent[st.ID] > 0 {
			continue
		}
		guardians, err := s.roster.ListStudentGuardians(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("list student guardians: %w", err)
		}
		if len(guardians) == 0 {
			status.NoGuardian = append(status.NoGuardian, st)
		}
	}

	return status, nil
}

// ClassSlots lists a class's interview slots with claimant display names.
// Teachers of the class and guardians who joined it may read.
func (s *ProjectionService) ClassSlots(ctx context.Context, callerID, classID int64) ([]*model.SlotView, error) {
	teaches, err := s.roster.IsTeacherOfClass(ctx, callerID, classID)
	if err != nil {
		return nil, fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		joined, err := s.roster.IsGuardianInClass(ctx, callerID, classID)
		if err != nil {
			return nil, fmt.Errorf("check class membership: %w", err)
		}
		if !joined {
			return nil, model.ErrNotFound
		}
	}

	slots, err := s.slots.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list class slots: %w", err)
	}

	userNames := map[int64]string{}
	studentNames := map[int64]string{}

	views := make([]*model.SlotView, 0, len(slots))
	for _, slot := range slots {
		view := &model.SlotView{Slot: slot}

		if slot.StudentID != nil {
			view.StudentName, err = s.studentName(ctx, studentNames, *slot.StudentID)
			if err != nil {
				return nil, err
			}
		}

		switch claimant := slot.Claimant().(type) {
		case model.GuardianClaim:
			view.ClaimantName, err = s.userName(ctx, userNames, claimant.GuardianID)
			if err != nil {
				return nil, err
			}
		case model.ManualClaim:
			view.ClaimantName = claimant.Name
		}

		views = append(views, view)
	}

	return views, nil
}

func (s *ProjectionService) userName(ctx context.Context, cache map[int64]string, id int64) (string, error) {
	if name, ok := cache[id]; ok {
		return name, nil
	}
	user, err := s.roster.GetUser(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	name := ""
	if user != nil {
		name = user.FullName
	}
	cache[id] = name
	return name, nil
}

func (s *ProjectionService) studentName(ctx context.Context, cache map[int64]string, id int64) (string, error) {
	if name, ok := cache[id]; ok {
		return name, nil
	}
	student, err := s.roster.GetStudent(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get student: %w", err)
	}
	name := ""
	if student != nil {
		name = student.FullName
	}
	cache[id] = name
	return name, nil
}
