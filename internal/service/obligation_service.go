package service

import (
	"context"
	"fmt"
	"time"

	"github.com/classkit/classkit/internal/model"
	"go.uber.org/zap"
)

// ObligationService runs the slip state machine. Every transition is a
// status-guarded conditional update; the prior read only decides which error
// to report, never whether the write is safe.
type ObligationService struct {
	events      EventStore
	obligations ObligationStore
	roster      RosterStore
	logger      *zap.Logger
	now         func() time.Time
}

func NewObligationService(
	events EventStore,
	obligations ObligationStore,
	roster RosterStore,
	logger *zap.Logger,
) *ObligationService {
	return &ObligationService{
		events:      events,
		obligations: obligations,
		roster:      roster,
		logger:      logger,
		now:         time.Now,
	}
}

// Sign completes a pending slip for the calling guardian. A form blob is
// required when the event requires one; a payment method is required whenever
// the event is payment-bearing.
func (s *ObligationService) Sign(ctx context.Context, guardianID, obligationID int64, form []byte, method *model.PaymentMethod) error {
	ob, ev, err := s.ownObligation(ctx, guardianID, obligationID)
	if err != nil {
		return err
	}

	if ev.RequiresForm {
		if err := ValidateSubmissionBlob(form); err != nil {
			return err
		}
	} else {
		// Payment-only events take no upload; drop anything supplied.
		form = nil
	}

	if err := checkMethod(ev, method); err != nil {
		return err
	}

	ok, err := s.obligations.MarkSigned(ctx, ob.ID, guardianID, form, method, s.now())
	if err != nil {
		return fmt.Errorf("mark signed: %w", err)
	}
	if !ok {
		return model.Conflictf("slip not found or already completed")
	}

	s.logger.Info("Obligation signed",
		zap.Int64("obligation_id", ob.ID),
		zap.Int64("guardian_id", guardianID),
		zap.Int64("event_id", ev.ID),
	)

	return nil
}

// Unsign reverts a signed slip to pending, clearing the signature, the
// uploaded form and the payment declaration.
func (s *ObligationService) Unsign(ctx context.Context, guardianID, obligationID int64) error {
	ob, _, err := s.ownObligation(ctx, guardianID, obligationID)
	if err != nil {
		return err
	}

	ok, err := s.obligations.MarkUnsigned(ctx, ob.ID, guardianID)
	if err != nil {
		return fmt.Errorf("mark unsigned: %w", err)
	}
	if !ok {
		return model.Conflictf("slip is not signed")
	}

	s.logger.Info("Obligation unsigned",
		zap.Int64("obligation_id", ob.ID),
		zap.Int64("guardian_id", guardianID),
	)

	return nil
}

// DeclarePayment completes a slip for a form-less payment event. Declaring the
// same method on an already-completed slip is a no-op.
func (s *ObligationService) DeclarePayment(ctx context.Context, guardianID, obligationID int64, method model.PaymentMethod) error {
	ob, ev, err := s.ownObligation(ctx, guardianID, obligationID)
	if err != nil {
		return err
	}

	if ev.RequiresForm {
		return model.Invalidf("event requires a signed form")
	}
	if !ev.IsPaymentBearing() {
		return model.Invalidf("event has no payable cost")
	}
	if err := checkMethod(ev, &method); err != nil {
		return err
	}

	ok, err := s.obligations.MarkSigned(ctx, ob.ID, guardianID, nil, &method, s.now())
	if err != nil {
		return fmt.Errorf("declare payment: %w", err)
	}
	if !ok {
		current, err := s.obligations.GetByID(ctx, ob.ID)
		if err != nil {
			return fmt.Errorf("reload obligation: %w", err)
		}
		if current != nil && current.IsSigned() && current.ResolvedPaymentMethod() == method {
			return nil
		}
		return model.Conflictf("slip already completed")
	}

	s.logger.Info("Payment declared",
		zap.Int64("obligation_id", ob.ID),
		zap.Int64("guardian_id", guardianID),
		zap.String("method", string(method)),
	)

	return nil
}

// TeacherDirectUpload records a paper slip handed to the teacher, for students
// whose parents have no account. It never overwrites a guardian's real signed
// submission.
func (s *ObligationService) TeacherDirectUpload(ctx context.Context, teacherID, eventID, classID, studentID int64, form []byte, method *model.PaymentMethod) (*model.Obligation, error) {
	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, classID)
	if err != nil {
		return nil, fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return nil, model.ErrNotFound
	}

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil || ev.ClassID == nil || *ev.ClassID != classID {
		return nil, model.ErrNotFound
	}

	enrolled, err := s.roster.IsStudentInClass(ctx, studentID, classID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, model.ErrNotFound
	}

	if err := ValidateFormBlob(form); err != nil {
		return nil, err
	}
	// Unlike the parent path, a missing method is fine here: paper submissions
	// resolve to cash.
	if method != nil {
		switch *method {
		case model.PaymentMethodOnline, model.PaymentMethodCash:
		default:
			return nil, model.Invalidf("unknown payment method %q", string(*method))
		}
	}

	existing, err := s.obligations.GetSignedByEventStudent(ctx, eventID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check existing submission: %w", err)
	}
	if existing != nil {
		return nil, model.Conflictf("a signed slip already exists for this student")
	}

	signedAt := s.now()
	sid := studentID
	ob := &model.Obligation{
		EventID:          eventID,
		ClassID:          classID,
		StudentID:        &sid,
		GuardianID:       teacherID, // sentinel: the teacher stands in for the guardian
		Status:           model.ObligationStatusSigned,
		TeacherSubmitted: true,
		SignedAt:         &signedAt,
		SubmittedForm:    form,
		PaymentMethod:    method,
	}

	ok, err := s.obligations.UpsertTeacherSigned(ctx, ob)
	if err != nil {
		return nil, fmt.Errorf("upsert teacher submission: %w", err)
	}
	if !ok {
		return nil, model.Conflictf("a signed slip already exists for this student")
	}

	s.logger.Info("Teacher direct upload recorded",
		zap.Int64("obligation_id", ob.ID),
		zap.Int64("teacher_id", teacherID),
		zap.Int64("event_id", eventID),
		zap.Int64("student_id", studentID),
	)

	return ob, nil
}

// MarkCashReceived sets or clears the cash receipt on a signed slip. Only
// valid when the resolved payment method is cash; teacher-submitted slips with
// no explicit method count as cash.
func (s *ObligationService) MarkCashReceived(ctx context.Context, teacherID, obligationID int64, received bool) error {
	ob, err := s.obligations.GetByID(ctx, obligationID)
	if err != nil {
		return fmt.Errorf("get obligation: %w", err)
	}
	if ob == nil {
		return model.ErrNotFound
	}

	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, ob.ClassID)
	if err != nil {
		return fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return model.ErrNotFound
	}

	if ob.ResolvedPaymentMethod() != model.PaymentMethodCash {
		return model.Invalidf("payment method is not cash")
	}

	var receivedAt *time.Time
	if received {
		t := s.now()
		receivedAt = &t
	}

	ok, err := s.obligations.SetCashReceived(ctx, ob.ID, receivedAt)
	if err != nil {
		return fmt.Errorf("set cash received: %w", err)
	}
	if !ok {
		return model.Conflictf("slip is not signed or no longer payable in cash")
	}

	s.logger.Info("Cash receipt updated",
		zap.Int64("obligation_id", ob.ID),
		zap.Int64("teacher_id", teacherID),
		zap.Bool("received", received),
	)

	return nil
}

// ownObligation loads a slip and verifies the calling guardian owns it, plus
// its event. Ownership failures fold into not-found.
func (s *ObligationService) ownObligation(ctx context.Context, guardianID, obligationID int64) (*model.Obligation, *model.Event, error) {
	ob, err := s.obligations.GetByID(ctx, obligationID)
	if err != nil {
		return nil, nil, fmt.Errorf("get obligation: %w", err)
	}
	if ob == nil || ob.GuardianID != guardianID {
		return nil, nil, model.ErrNotFound
	}

	ev, err := s.events.GetByID(ctx, ob.EventID)
	if err != nil {
		return nil, nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, nil, model.ErrNotFound
	}

	return ob, ev, nil
}

// checkMethod enforces the payment-method guard: payment-bearing events need a
// declared method, and the method value must be known.
func checkMethod(ev *model.Event, method *model.PaymentMethod) error {
	if method != nil {
		switch *method {
		case model.PaymentMethodOnline, model.PaymentMethodCash:
		default:
			return model.Invalidf("unknown payment method %q", string(*method))
		}
	}
	if ev.IsPaymentBearing() && (method == nil || *method == model.PaymentMethodNone) {
		return model.Invalidf("payment method is required for this event")
	}
	return nil
}
