package service

import (
	"context"
	"fmt"

	"github.com/classkit/classkit/internal/model"
	"go.uber.org/zap"
)

// RosterService owns the guardian-student link and its two side effects:
// backfill on link, obligation cascade on unlink.
type RosterService struct {
	roster      RosterStore
	obligations ObligationStore
	fanout      *FanoutEngine
	logger      *zap.Logger
}

func NewRosterService(
	roster RosterStore,
	obligations ObligationStore,
	fanout *FanoutEngine,
	logger *zap.Logger,
) *RosterService {
	return &RosterService{
		roster:      roster,
		obligations: obligations,
		fanout:      fanout,
		logger:      logger,
	}
}

// LinkGuardianToStudent links a guardian and backfills obligations for every
// in-flight obligation-bearing event of the class. Linking twice is not an
// error and never duplicates slips; the backfill runs either way, doubling as
// a repair pass.
func (s *RosterService) LinkGuardianToStudent(ctx context.Context, teacherID, classID, studentID, guardianID int64) error {
	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, classID)
	if err != nil {
		return fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return model.ErrNotFound
	}

	enrolled, err := s.roster.IsStudentInClass(ctx, studentID, classID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return model.ErrNotFound
	}

	guardian, err := s.roster.GetUser(ctx, guardianID)
	if err != nil {
		return fmt.Errorf("get guardian: %w", err)
	}
	if guardian == nil {
		return model.ErrNotFound
	}

	created, err := s.roster.LinkGuardian(ctx, studentID, guardianID)
	if err != nil {
		return fmt.Errorf("link guardian: %w", err)
	}

	s.fanout.Backfill(ctx, classID, studentID, guardianID)

	s.logger.Info("Guardian linked to student",
		zap.Int64("teacher_id", teacherID),
		zap.Int64("class_id", classID),
		zap.Int64("student_id", studentID),
		zap.Int64("guardian_id", guardianID),
		zap.Bool("already_linked", !created),
	)

	return nil
}

// UnlinkGuardianFromStudent removes the link and cascades every obligation
// addressed to that (student, guardian) pair.
func (s *RosterService) UnlinkGuardianFromStudent(ctx context.Context, teacherID, classID, studentID, guardianID int64) error {
	teaches, err := s.roster.IsTeacherOfClass(ctx, teacherID, classID)
	if err != nil {
		return fmt.Errorf("check class teacher: %w", err)
	}
	if !teaches {
		return model.ErrNotFound
	}

	removed, err := s.roster.UnlinkGuardian(ctx, studentID, guardianID)
	if err != nil {
		return fmt.Errorf("unlink guardian: %w", err)
	}
	if !removed {
		return model.ErrNotFound
	}

	cascaded, err := s.obligations.DeleteByPair(ctx, studentID, guardianID)
	if err != nil {
		return fmt.Errorf("cascade obligations: %w", err)
	}

	s.logger.Info("Guardian unlinked from student",
		zap.Int64("teacher_id", teacherID),
		zap.Int64("student_id", studentID),
		zap.Int64("guardian_id", guardianID),
		zap.Int64("obligations_removed", cascaded),
	)

	return nil
}
