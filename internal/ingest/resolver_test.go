package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
)

type uowStub struct {
	existing     map[string]bool
	existErr     error
	courses      map[models.CourseKey]string
	courseCalls  int
	existQueries [][]string
}

func newUOWStub() *uowStub {
	return &uowStub{existing: map[string]bool{}, courses: map[models.CourseKey]string{}}
}

func (u *uowStub) StudentsExist(_ context.Context, ids []string) (map[string]bool, error) {
	u.existQueries = append(u.existQueries, ids)
	if u.existErr != nil {
		return nil, u.existErr
	}
	out := map[string]bool{}
	for _, id := range ids {
		if u.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (u *uowStub) CreateStudent(context.Context, *models.Student) (bool, error) { return true, nil }

func (u *uowStub) FindOrCreateCourse(_ context.Context, course *models.Course) (bool, error) {
	u.courseCalls++
	if id, ok := u.courses[course.Key()]; ok {
		course.ID = id
		return false, nil
	}
	course.ID = "course-" + course.CourseNum + "-" + course.Section
	u.courses[course.Key()] = course.ID
	return true, nil
}

func (u *uowStub) CreateEnrollment(context.Context, *models.Enrollment) (bool, error) {
	return true, nil
}

func candidate(id string, line int) StudentCandidate {
	return StudentCandidate{Line: line, Student: models.Student{ID: id}}
}

func TestResolverRegisterStudentsSkipsExistingAndRepeats(t *testing.T) {
	uow := newUOWStub()
	uow.existing["S2"] = true
	r := NewResolver(uow)

	fresh, skipped, err := r.RegisterStudents(context.Background(), []StudentCandidate{
		candidate("S1", 2), candidate("S2", 3), candidate("S1", 4), candidate("S3", 5),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, fresh, 2)
	assert.Equal(t, 2, fresh[0].Line)
	assert.Equal(t, "S3", fresh[1].Student.ID)
	assert.Len(t, uow.existQueries, 1, "existence is checked in bulk")

	for _, id := range []string{"S1", "S2", "S3"} {
		state, err := r.ResolveStudent(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, StudentResolved, state, id)
	}
	assert.Len(t, uow.existQueries, 1)
}

func TestResolverResolveStudentStates(t *testing.T) {
	uow := newUOWStub()
	uow.existing["OLD"] = true
	r := NewResolver(uow)
	r.RejectStudent("BAD")

	state, err := r.ResolveStudent(context.Background(), "BAD")
	require.NoError(t, err)
	assert.Equal(t, StudentRejected, state)

	state, err = r.ResolveStudent(context.Background(), "OLD")
	require.NoError(t, err)
	assert.Equal(t, StudentResolved, state)

	state, err = r.ResolveStudent(context.Background(), "GHOST")
	require.NoError(t, err)
	assert.Equal(t, StudentUnknown, state)

	_, _ = r.ResolveStudent(context.Background(), "GHOST")
	assert.Len(t, uow.existQueries, 2, "lookups are cached per batch")
}

func TestResolverResolveCourseReusesNaturalKey(t *testing.T) {
	uow := newUOWStub()
	r := NewResolver(uow)
	course := models.Course{CourseNum: "CS-3350", Semester: "FA", Year: 2022, Section: "01", Title: "Data Structures"}

	first, err := r.ResolveCourse(context.Background(), course)
	require.NoError(t, err)
	second, err := r.ResolveCourse(context.Background(), course)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, uow.courseCalls)
	assert.Equal(t, 1, r.CoursesCreated)

	other := course
	other.Section = "02"
	third, err := r.ResolveCourse(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, 2, uow.courseCalls)
	assert.Equal(t, 2, r.CoursesCreated)
}

func TestResolverPropagatesStorageErrors(t *testing.T) {
	uow := newUOWStub()
	uow.existErr = errors.New("connection reset")
	r := NewResolver(uow)

	_, _, err := r.RegisterStudents(context.Background(), []StudentCandidate{candidate("S1", 2)})
	require.Error(t, err)
	assert.ErrorIs(t, err, uow.existErr)
}
