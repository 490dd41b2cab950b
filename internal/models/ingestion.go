package models

// IngestionStatus is the terminal state of one upload.
type IngestionStatus string

const (
	IngestionCommitted IngestionStatus = "committed"
	IngestionRejected  IngestionStatus = "rejected"
)

// IngestionCounts reports what a committed upload changed.
type IngestionCounts struct {
	StudentsCreated    int `json:"students_created"`
	StudentsSkipped    int `json:"students_skipped"`
	CoursesCreated     int `json:"courses_created"`
	EnrollmentsCreated int `json:"enrollments_created"`
	EnrollmentsSkipped int `json:"enrollments_skipped"`
}
