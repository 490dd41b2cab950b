package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
)

func newIngestStoreMock(t *testing.T) (*IngestStore, sqlmock.Sqlmock, func()) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "sqlmock")
	store := NewIngestStore(db, NewStudentRepository(db), NewCourseRepository(db), NewEnrollmentRepository(db))
	return store, mock, func() { raw.Close() }
}

func TestIngestStoreWritesInsideOneTransaction(t *testing.T) {
	store, mock, cleanup := newIngestStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM students`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO students`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO courses`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO enrollments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	existing, err := tx.StudentsExist(ctx, []string{"S1"})
	require.NoError(t, err)
	assert.Empty(t, existing)

	created, err := tx.CreateStudent(ctx, &models.Student{ID: "S1"})
	require.NoError(t, err)
	assert.True(t, created)

	course := dataStructures()
	created, err = tx.FindOrCreateCourse(ctx, course)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = tx.CreateEnrollment(ctx, &models.Enrollment{StudentID: "S1", CourseID: course.ID, Grade: models.GradeA})
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestStoreRollback(t *testing.T) {
	store, mock, cleanup := newIngestStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO students`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.CreateStudent(ctx, &models.Student{ID: "S1"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
