package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Insert stores enrollment unless the student already has a record for the
// same offering. It reports whether a row was written.
func (r *EnrollmentRepository) Insert(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error) {
	if enrollment == nil {
		return false, fmt.Errorf("enrollment payload is nil")
	}
	if enrollment.StudentID == "" || enrollment.CourseID == "" {
		return false, fmt.Errorf("student_id and course_id are required")
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO enrollments (id, student_id, course_id, grade, program_level, subprogram_code, subprogram_desc, created_at)
VALUES (:id, :student_id, :course_id, :grade, :program_level, :subprogram_code, :subprogram_desc, :created_at)
ON CONFLICT (student_id, course_id) DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, enrollment)
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enrollment rows affected: %w", err)
	}
	return affected > 0, nil
}
