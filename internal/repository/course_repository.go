package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
)

// CourseRepository persists course offerings.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindOrCreate fills course.ID with the offering matching its natural key,
// inserting it first when absent. It reports whether the row is new. The
// unique index on the natural key arbitrates concurrent creators.
func (r *CourseRepository) FindOrCreate(ctx context.Context, exec sqlx.ExtContext, course *models.Course) (bool, error) {
	if course == nil {
		return false, fmt.Errorf("course payload is nil")
	}
	target := r.exec(exec)
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}

	const insertQuery = `
INSERT INTO courses (id, course_num, semester, year, section, title, term_code, created_at)
VALUES (:id, :course_num, :semester, :year, :section, :title, :term_code, :created_at)
ON CONFLICT (course_num, semester, year, section, title) DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, target, insertQuery, course)
	if err != nil {
		return false, fmt.Errorf("insert course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("course rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	const selectQuery = `SELECT id FROM courses
WHERE course_num = $1 AND semester = $2 AND year = $3 AND section = $4 AND title = $5`
	if err := sqlx.GetContext(ctx, target, &course.ID, selectQuery,
		course.CourseNum, course.Semester, course.Year, course.Section, course.Title); err != nil {
		return false, fmt.Errorf("select course by natural key: %w", err)
	}
	return false, nil
}
