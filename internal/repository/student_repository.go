package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
)

const studentColumns = `id, first_name, last_name, admit_year, admit_term, admit_type, major_1, major_1_desc,
major_2, major_2_desc, major_3, major_3_desc, minor_1, minor_2, minor_3, concentration_1,
concentration_2, concentration_3, class_standing, city, state, country, postal_code,
race_ethnicity, sex, first_gen, gpa_cumulative, hs_gpa, sat_math, sat_total, act_score,
math_placement_score, hs_name, hs_city, hs_state, hs_ceeb, leave_date, leave_reason,
honors, compass, austin, athlete, created_at`

// StudentRepository persists students keyed by their institution id.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ExistingIDs returns which of ids are already stored.
func (r *StudentRepository) ExistingIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	const query = `SELECT id FROM students WHERE id = ANY($1)`
	var stored []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &stored, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select existing students: %w", err)
	}
	for _, id := range stored {
		found[id] = true
	}
	return found, nil
}

// Insert stores student unless its id is already taken. It reports whether
// a row was written.
func (r *StudentRepository) Insert(ctx context.Context, exec sqlx.ExtContext, student *models.Student) (bool, error) {
	if student == nil {
		return false, fmt.Errorf("student payload is nil")
	}
	if student.ID == "" {
		return false, fmt.Errorf("student id is required")
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO students (` + studentColumns + `)
VALUES (:id, :first_name, :last_name, :admit_year, :admit_term, :admit_type, :major_1,
:major_1_desc, :major_2, :major_2_desc, :major_3, :major_3_desc, :minor_1, :minor_2,
:minor_3, :concentration_1, :concentration_2, :concentration_3, :class_standing, :city,
:state, :country, :postal_code, :race_ethnicity, :sex, :first_gen, :gpa_cumulative,
:hs_gpa, :sat_math, :sat_total, :act_score, :math_placement_score, :hs_name, :hs_city,
:hs_state, :hs_ceeb, :leave_date, :leave_reason, :honors, :compass, :austin, :athlete,
:created_at)
ON CONFLICT (id) DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, student)
	if err != nil {
		return false, fmt.Errorf("insert student %s: %w", student.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("student rows affected: %w", err)
	}
	return affected > 0, nil
}
