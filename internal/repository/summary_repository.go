package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
)

// SummaryRepository computes dashboard aggregates.
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository constructs the repository.
func NewSummaryRepository(db *sqlx.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

type summaryTotals struct {
	Students     int             `db:"students"`
	Courses      int             `db:"courses"`
	Enrollments  int             `db:"enrollments"`
	AverageGPA   sql.NullFloat64 `db:"average_gpa"`
	AverageHSGPA sql.NullFloat64 `db:"average_hs_gpa"`
}

// Summary aggregates counts, grade averages, the DWF rate and the
// demographic breakdowns.
func (r *SummaryRepository) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	const totalsQuery = `SELECT
(SELECT COUNT(*) FROM students) AS students,
(SELECT COUNT(*) FROM courses) AS courses,
(SELECT COUNT(*) FROM enrollments) AS enrollments,
(SELECT AVG(gpa_cumulative) FROM students) AS average_gpa,
(SELECT AVG(hs_gpa) FROM students) AS average_hs_gpa`
	var totals summaryTotals
	if err := r.db.GetContext(ctx, &totals, totalsQuery); err != nil {
		return nil, fmt.Errorf("summary totals: %w", err)
	}

	summary := &models.DashboardSummary{
		Students:    totals.Students,
		Courses:     totals.Courses,
		Enrollments: totals.Enrollments,
	}
	if totals.AverageGPA.Valid {
		v := totals.AverageGPA.Float64
		summary.AverageGPA = &v
	}
	if totals.AverageHSGPA.Valid {
		v := totals.AverageHSGPA.Float64
		summary.AverageHSGPA = &v
	}

	rate, err := r.DWFRate(ctx)
	if err != nil {
		return nil, err
	}
	summary.DWFRate = rate

	if summary.ByRace, err = r.countBy(ctx, "race_ethnicity", "Unknown"); err != nil {
		return nil, err
	}
	if summary.BySex, err = r.countBy(ctx, "sex", "U"); err != nil {
		return nil, err
	}
	return summary, nil
}

// DWFRate returns the percentage of enrollments graded D+, D, D-, F or W.
func (r *SummaryRepository) DWFRate(ctx context.Context) (float64, error) {
	grades := make([]string, len(models.DWFGrades))
	for i, g := range models.DWFGrades {
		grades[i] = string(g)
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FILTER (WHERE grade IN (?)) AS dwf, COUNT(*) AS total FROM enrollments`, grades)
	if err != nil {
		return 0, fmt.Errorf("build dwf query: %w", err)
	}
	var counts struct {
		DWF   int `db:"dwf"`
		Total int `db:"total"`
	}
	if err := r.db.GetContext(ctx, &counts, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("dwf rate: %w", err)
	}
	if counts.Total == 0 {
		return 0, nil
	}
	return float64(counts.DWF) * 100 / float64(counts.Total), nil
}

// countBy groups students by column; column is always a literal from this
// file, never user input.
func (r *SummaryRepository) countBy(ctx context.Context, column, fallback string) ([]models.CategoryCount, error) {
	query := fmt.Sprintf(`SELECT COALESCE(%s, $1) AS label, COUNT(*) AS count
FROM students GROUP BY 1 ORDER BY count DESC, label`, column)
	var buckets []models.CategoryCount
	if err := r.db.SelectContext(ctx, &buckets, query, fallback); err != nil {
		return nil, fmt.Errorf("count students by %s: %w", column, err)
	}
	return buckets, nil
}
