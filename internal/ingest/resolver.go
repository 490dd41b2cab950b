package ingest

import (
	"context"
	"fmt"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
)

// UnitOfWork is the transactional storage the resolver and the orchestrator
// write through. Nothing it does is visible outside the transaction until
// Commit.
type UnitOfWork interface {
	StudentsExist(ctx context.Context, ids []string) (map[string]bool, error)
	CreateStudent(ctx context.Context, student *models.Student) (bool, error)
	FindOrCreateCourse(ctx context.Context, course *models.Course) (bool, error)
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) (bool, error)
}

// Transaction is a UnitOfWork that can be finished.
type Transaction interface {
	UnitOfWork
	Commit() error
	Rollback() error
}

// StudentState is the outcome of looking up a student id.
type StudentState int

const (
	StudentUnknown StudentState = iota
	StudentResolved
	StudentRejected
)

// StudentCandidate is a validated student row.
type StudentCandidate struct {
	Line    int
	Student models.Student
}

// Resolver maps natural keys onto stored entities for one batch.
type Resolver struct {
	uow      UnitOfWork
	students map[string]StudentState
	courses  map[models.CourseKey]string

	CoursesCreated int
}

// NewResolver builds an empty batch resolver.
func NewResolver(uow UnitOfWork) *Resolver {
	return &Resolver{
		uow:      uow,
		students: make(map[string]StudentState),
		courses:  make(map[models.CourseKey]string),
	}
}

// RejectStudent remembers an id whose row failed validation, so enrollments
// naming it are not reported a second time.
func (r *Resolver) RejectStudent(id string) {
	if id == "" {
		return
	}
	if _, seen := r.students[id]; !seen {
		r.students[id] = StudentRejected
	}
}

// RegisterStudents returns the candidates that must be created: ids already
// stored are dropped, as are repeats of an id earlier in the batch. skipped
// counts both.
func (r *Resolver) RegisterStudents(ctx context.Context, candidates []StudentCandidate) ([]StudentCandidate, int, error) {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Student.ID)
	}

	existing := map[string]bool{}
	if len(ids) > 0 {
		var err error
		existing, err = r.uow.StudentsExist(ctx, ids)
		if err != nil {
			return nil, 0, fmt.Errorf("check existing students: %w", err)
		}
	}

	fresh := make([]StudentCandidate, 0, len(candidates))
	skipped := 0
	for _, c := range candidates {
		id := c.Student.ID
		if state, seen := r.students[id]; seen && state == StudentResolved {
			skipped++
			continue
		}
		r.students[id] = StudentResolved
		if existing[id] {
			skipped++
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, skipped, nil
}

// ResolveStudent reports whether id names a student in this batch or in
// storage. Ids not seen in the batch are looked up once.
func (r *Resolver) ResolveStudent(ctx context.Context, id string) (StudentState, error) {
	if state, seen := r.students[id]; seen {
		return state, nil
	}
	existing, err := r.uow.StudentsExist(ctx, []string{id})
	if err != nil {
		return StudentUnknown, fmt.Errorf("look up student %s: %w", id, err)
	}
	state := StudentUnknown
	if existing[id] {
		state = StudentResolved
	}
	r.students[id] = state
	return state, nil
}

// ResolveCourse returns the id of the offering with course's natural key,
// creating it inside the unit of work when needed.
func (r *Resolver) ResolveCourse(ctx context.Context, course models.Course) (string, error) {
	key := course.Key()
	if id, ok := r.courses[key]; ok {
		return id, nil
	}
	created, err := r.uow.FindOrCreateCourse(ctx, &course)
	if err != nil {
		return "", fmt.Errorf("resolve course %s %s %d: %w", key.CourseNum, key.Semester, key.Year, err)
	}
	if created {
		r.CoursesCreated++
	}
	r.courses[key] = course.ID
	return course.ID, nil
}
