package models

import "time"

// CategoryCount is one bucket of a demographic breakdown.
type CategoryCount struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

// DashboardSummary aggregates the statistics shown on the dashboard home.
type DashboardSummary struct {
	Students     int             `json:"students"`
	Courses      int             `json:"courses"`
	Enrollments  int             `json:"enrollments"`
	AverageGPA   *float64        `json:"average_gpa"`
	AverageHSGPA *float64        `json:"average_hs_gpa"`
	DWFRate      float64         `json:"dwf_rate"`
	ByRace       []CategoryCount `json:"by_race"`
	BySex        []CategoryCount `json:"by_sex"`
	GeneratedAt  time.Time       `json:"generated_at"`
}
