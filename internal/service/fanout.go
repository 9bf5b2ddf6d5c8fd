package service

import (
	"context"
	"time"

	"github.com/classkit/classkit/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FanoutEngine creates the per-(event, student, guardian) obligation set.
// Two triggers exist: a snapshot broadcast when an event is created, and a
// backfill repair when a guardian is linked to a student after the fact.
//
// The fan-out is best-effort: one failed insert must not keep the rest of the
// class from receiving the slip, and the triggering operation
// still succeeds. Partial failures are visible in the log under the batch id,
// not to the caller.
type FanoutEngine struct {
	events      EventStore
	obligations ObligationStore
	roster      RosterStore
	logger      *zap.Logger
	now         func() time.Time
}

func NewFanoutEngine(
	events EventStore,
	obligations ObligationStore,
	roster RosterStore,
	logger *zap.Logger,
) *FanoutEngine {
	return &FanoutEngine{
		events:      events,
		obligations: obligations,
		roster:      roster,
		logger:      logger,
		now:         time.Now,
	}
}

// Broadcast fans an event out to every (student, guardian) pair enrolled in
// its class right now. Enrollment changes after this call are handled by
// Backfill, not by re-running the broadcast.
func (f *FanoutEngine) Broadcast(ctx context.Context, ev *model.Event) (created int, failed int) {
	if ev.ClassID == nil || !ev.IsObligationBearing() {
		return 0, 0
	}

	batch := uuid.New()
	log := f.logger.With(
		zap.Int64("event_id", ev.ID),
		zap.Int64("class_id", *ev.ClassID),
		zap.String("fanout_batch", batch.String()),
	)

	students, err := f.roster.ListClassStudents(ctx, *ev.ClassID)
	if err != nil {
		log.Error("fan-out aborted: list class students", zap.Error(err))
		return 0, 0
	}

	var skipped int
	for _, student := range students {
		guardians, err := f.roster.ListStudentGuardians(ctx, student.ID)
		if err != nil {
			failed++
			log.Warn("fan-out: list guardians failed",
				zap.Int64("student_id", student.ID),
				zap.Error(err),
			)
			continue
		}

		// Students with no linked guardians get no stored obligation; they
		// surface read-side in the no-guardian bucket.
		for _, guardian := range guardians {
			inserted, err := f.insertPending(ctx, ev, student.ID, guardian.ID)
			switch {
			case err != nil:
				failed++
				log.Warn("fan-out: obligation insert failed",
					zap.Int64("student_id", student.ID),
					zap.Int64("guardian_id", guardian.ID),
					zap.Error(err),
				)
			case inserted:
				created++
			default:
				skipped++
			}
		}
	}

	log.Info("event fan-out complete",
		zap.Int("students", len(students)),
		zap.Int("created", created),
		zap.Int("already_covered", skipped),
		zap.Int("failed", failed),
	)

	return created, failed
}

// Backfill repairs the obligation set after a guardian-student link is
// created: every obligation-bearing, not-yet-elapsed event of the class gets
// the missing slip for the new pair. Safe to run repeatedly; covered triples
// are skipped.
func (f *FanoutEngine) Backfill(ctx context.Context, classID, studentID, guardianID int64) (created int, failed int) {
	log := f.logger.With(
		zap.Int64("class_id", classID),
		zap.Int64("student_id", studentID),
		zap.Int64("guardian_id", guardianID),
	)

	events, err := f.events.ListByClass(ctx, classID)
	if err != nil {
		log.Error("backfill aborted: list class events", zap.Error(err))
		return 0, 0
	}

	now := f.now()
	var skipped int
	for _, ev := range events {
		if !ev.IsObligationBearing() || !ev.InFlight(now) {
			continue
		}

		inserted, err := f.insertPending(ctx, ev, studentID, guardianID)
		switch {
		case err != nil:
			failed++
			log.Warn("backfill: obligation insert failed",
				zap.Int64("event_id", ev.ID),
				zap.Error(err),
			)
		case inserted:
			created++
		default:
			skipped++
		}
	}

	if created > 0 || failed > 0 {
		log.Info("guardian-link backfill complete",
			zap.Int("created", created),
			zap.Int("already_covered", skipped),
			zap.Int("failed", failed),
		)
	}

	return created, failed
}

func (f *FanoutEngine) insertPending(ctx context.Context, ev *model.Event, studentID, guardianID int64) (bool, error) {
	sid := studentID
	ob := &model.Obligation{
		EventID:    ev.ID,
		ClassID:    *ev.ClassID,
		StudentID:  &sid,
		GuardianID: guardianID,
		Status:     model.ObligationStatusPending,
	}
	return f.obligations.Insert(ctx, ob)
}
