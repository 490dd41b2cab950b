package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/stem-dashboard-api/internal/ingest"
	"github.com/noah-isme/stem-dashboard-api/internal/models"
)

// IngestStore opens the transaction an upload is written through.
type IngestStore struct {
	db          *sqlx.DB
	students    *StudentRepository
	courses     *CourseRepository
	enrollments *EnrollmentRepository
}

// NewIngestStore wires the repositories that share one transaction.
func NewIngestStore(db *sqlx.DB, students *StudentRepository, courses *CourseRepository, enrollments *EnrollmentRepository) *IngestStore {
	return &IngestStore{db: db, students: students, courses: courses, enrollments: enrollments}
}

// Begin starts a transaction bound to ctx; cancelling ctx aborts it.
func (s *IngestStore) Begin(ctx context.Context) (ingest.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ingestion transaction: %w", err)
	}
	return &ingestTx{tx: tx, store: s}, nil
}

type ingestTx struct {
	tx    *sqlx.Tx
	store *IngestStore
}

func (t *ingestTx) StudentsExist(ctx context.Context, ids []string) (map[string]bool, error) {
	return t.store.students.ExistingIDs(ctx, t.tx, ids)
}

func (t *ingestTx) CreateStudent(ctx context.Context, student *models.Student) (bool, error) {
	return t.store.students.Insert(ctx, t.tx, student)
}

func (t *ingestTx) FindOrCreateCourse(ctx context.Context, course *models.Course) (bool, error) {
	return t.store.courses.FindOrCreate(ctx, t.tx, course)
}

func (t *ingestTx) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	return t.store.enrollments.Insert(ctx, t.tx, enrollment)
}

func (t *ingestTx) Commit() error {
	return t.tx.Commit()
}

func (t *ingestTx) Rollback() error {
	return t.tx.Rollback()
}
