package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/classkit/classkit/internal/model"
	"github.com/classkit/classkit/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RosterRepository reads the reference entities (users, students, classes,
// enrollment and guardian links) that other subsystems own. The only writes
// here are the guardian-student link itself.
type RosterRepository struct {
	*base.Repository
}

func NewRosterRepository(pool *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{Repository: base.NewRepository(pool)}
}

// GetUser returns the user or nil when absent.
func (r *RosterRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT id, full_name, email, is_teacher, created_at FROM users WHERE id = $1`

	var u model.User
	err := r.QueryRow(ctx, query, id).Scan(&u.ID, &u.FullName, &u.Email, &u.IsTeacher, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &u, nil
}

// GetStudent returns the student or nil when absent.
func (r *RosterRepository) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	query := `SELECT id, school_id, full_name, created_at FROM students WHERE id = $1`

	var s model.Student
	err := r.QueryRow(ctx, query, id).Scan(&s.ID, &s.SchoolID, &s.FullName, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student by id: %w", err)
	}

	return &s, nil
}

// GetClass returns the class or nil when absent.
func (r *RosterRepository) GetClass(ctx context.Context, id int64) (*model.Class, error) {
	query := `SELECT id, school_id, name, created_at FROM classes WHERE id = $1`

	var c model.Class
	err := r.QueryRow(ctx, query, id).Scan(&c.ID, &c.SchoolID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get class by id: %w", err)
	}

	return &c, nil
}

// ListClassStudents returns the students currently enrolled in a class.
func (r *RosterRepository) ListClassStudents(ctx context.Context, classID int64) ([]*model.Student, error) {
	query := `
		SELECT s.id, s.school_id, s.full_name, s.created_at
		FROM students s
		JOIN class_students cs ON cs.student_id = s.id
		WHERE cs.class_id = $1
		ORDER BY s.full_name
	`

	rows, err := r.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.ID, &s.SchoolID, &s.FullName, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, &s)
	}

	return students, rows.Err()
}

// ListStudentGuardians returns the guardians currently linked to a student.
func (r *RosterRepository) ListStudentGuardians(ctx context.Context, studentID int64) ([]*model.User, error) {
	query := `
		SELECT u.id, u.full_name, u.email, u.is_teacher, u.created_at
		FROM users u
		JOIN student_guardians sg ON sg.guardian_id = u.id
		WHERE sg.student_id = $1
		ORDER BY u.full_name
	`

	rows, err := r.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student guardians: %w", err)
	}
	defer rows.Close()

	var guardians []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.IsTeacher, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan guardian: %w", err)
		}
		guardians = append(guardians, &u)
	}

	return guardians, rows.Err()
}

// IsTeacherOfClass reports whether the user teaches the class.
func (r *RosterRepository) IsTeacherOfClass(ctx context.Context, teacherID, classID int64) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM class_teachers WHERE teacher_id = $1 AND class_id = $2)`,
		teacherID, classID)
}

// IsStudentInClass reports whether the student is enrolled in the class.
func (r *RosterRepository) IsStudentInClass(ctx context.Context, studentID, classID int64) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM class_students WHERE student_id = $1 AND class_id = $2)`,
		studentID, classID)
}

// IsGuardianInClass reports whether the guardian has joined the class.
func (r *RosterRepository) IsGuardianInClass(ctx context.Context, guardianID, classID int64) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM class_guardians WHERE guardian_id = $1 AND class_id = $2)`,
		guardianID, classID)
}

// IsGuardianOfStudent reports whether the guardian is linked to the student.
func (r *RosterRepository) IsGuardianOfStudent(ctx context.Context, guardianID, studentID int64) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM student_guardians WHERE guardian_id = $1 AND student_id = $2)`,
		guardianID, studentID)
}

// LinkGuardian links a guardian to a student. Reports false when the link
// already existed; relinking is not an error.
func (r *RosterRepository) LinkGuardian(ctx context.Context, studentID, guardianID int64) (bool, error) {
	query := `
		INSERT INTO student_guardians (student_id, guardian_id)
		VALUES ($1, $2)
		ON CONFLICT (student_id, guardian_id) DO NOTHING
	`

	affected, err := r.ExecAffected(ctx, query, studentID, guardianID)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("link guardian: %w", err)
	}

	return affected > 0, nil
}

// UnlinkGuardian removes a guardian-student link.
func (r *RosterRepository) UnlinkGuardian(ctx context.Context, studentID, guardianID int64) (bool, error) {
	query := `DELETE FROM student_guardians WHERE student_id = $1 AND guardian_id = $2`

	affected, err := r.ExecAffected(ctx, query, studentID, guardianID)
	if err != nil {
		return false, fmt.Errorf("unlink guardian: %w", err)
	}

	return affected > 0, nil
}

func (r *RosterRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var ok bool
	if err := r.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return ok, nil
}
