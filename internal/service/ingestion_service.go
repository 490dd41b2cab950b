package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/stem-dashboard-api/internal/ingest"
	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
	"github.com/noah-isme/stem-dashboard-api/pkg/database"
	appErrors "github.com/noah-isme/stem-dashboard-api/pkg/errors"
	"github.com/noah-isme/stem-dashboard-api/pkg/middleware/requestid"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

// SummaryCachePattern matches every cached dashboard summary.
const SummaryCachePattern = "summary:*"

type ingestStore interface {
	Begin(ctx context.Context) (ingest.Transaction, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// Upload is one file submitted for ingestion.
type Upload struct {
	Kind     tabular.Kind
	Payload  []byte
	Filename string
}

// IngestionResult is the outcome of an upload that could be read. A
// rejected result carries the full error report and nothing was stored.
type IngestionResult struct {
	Status models.IngestionStatus `json:"status"`
	Counts models.IngestionCounts `json:"result"`
	Report []ingest.ReportEntry   `json:"errors,omitempty"`
}

// Committed reports whether the upload was stored.
func (r *IngestionResult) Committed() bool {
	return r != nil && r.Status == models.IngestionCommitted
}

type stage string

const (
	stageParse               stage = "parse"
	stageValidateStudents    stage = "validate_students"
	stageValidateEnrollments stage = "validate_enrollments"
	stageCommit              stage = "commit"
	stageReportErrors        stage = "report_errors"
	stageRejected            stage = "rejected"
)

// IngestionService turns uploaded exports into students, courses and
// enrollments. An upload is stored completely or not at all.
type IngestionService struct {
	store   ingestStore
	cache   cacheInvalidator
	metrics *MetricsService
	rules   *ingest.Rules
	cfg     config.IngestionConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestionService constructs the service. cache and metrics may be nil.
func NewIngestionService(store ingestStore, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, cfg config.IngestionConfig, logger *zap.Logger) *IngestionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		rules:   ingest.NewRules(validate),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest parses, validates and stores upload. Unreadable payloads return
// errors.ErrSourceUnreadable; invalid rows yield a rejected result; storage
// failures return an error after rolling back.
func (s *IngestionService) Ingest(ctx context.Context, upload Upload) (*IngestionResult, error) {
	start := s.now()
	log := s.logger.With(
		zap.String("filename", upload.Filename),
		zap.String("kind", string(upload.Kind)),
		zap.String("request_id", requestid.FromContext(ctx)),
	)

	log.Debug("ingestion stage", zap.String("stage", string(stageParse)))
	wb, err := tabular.Read(upload.Kind, upload.Payload, tabular.Options{
		StudentSheet:       s.cfg.StudentSheet,
		EnrollmentSheet:    s.cfg.EnrollmentSheet,
		RequireEnrollments: s.cfg.RequireEnrollmentsSheet,
	})
	if err != nil {
		log.Info("upload unreadable", zap.String("stage", string(stageRejected)), zap.Error(err))
		s.observe(upload.Kind, "unreadable", start, nil, nil, nil)
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, s.storageError(err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn("rollback ingestion transaction", zap.Error(rbErr))
		}
	}()

	run := &ingestionRun{
		tx:       tx,
		rules:    s.rules,
		cfg:      s.cfg,
		ctx:      ingest.Context{Now: start, Bounds: ingest.BoundsFromConfig(s.cfg)},
		resolver: ingest.NewResolver(tx),
		diags:    &ingest.Diagnostics{},
	}

	log.Debug("ingestion stage", zap.String("stage", string(stageValidateStudents)))
	if err := run.students(ctx, wb.Table(tabular.TableStudents)); err != nil {
		return nil, s.storageError(err)
	}
	log.Debug("ingestion stage", zap.String("stage", string(stageValidateEnrollments)))
	if err := run.enrollments(ctx, wb.Table(tabular.TableEnrollments)); err != nil {
		return nil, s.storageError(err)
	}
	run.counts.CoursesCreated = run.resolver.CoursesCreated

	rows := map[string]int{}
	for name, table := range wb.Tables {
		rows[string(name)] = len(table.Rows)
	}

	if !run.diags.Empty() {
		items := run.diags.Items()
		log.Info("upload rejected", zap.String("stage", string(stageReportErrors)), zap.Int("diagnostics", len(items)))
		s.observe(upload.Kind, string(models.IngestionRejected), start, rows, countKinds(items), nil)
		return &IngestionResult{Status: models.IngestionRejected, Report: ingest.BuildReport(items)}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, s.storageError(err)
	}
	log.Debug("ingestion stage", zap.String("stage", string(stageCommit)))
	if err := tx.Commit(); err != nil {
		return nil, s.storageError(err)
	}
	committed = true

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, SummaryCachePattern); err != nil {
			log.Warn("invalidate summary cache", zap.Error(err))
		}
	}

	log.Info("upload committed",
		zap.Int("students_created", run.counts.StudentsCreated),
		zap.Int("students_skipped", run.counts.StudentsSkipped),
		zap.Int("courses_created", run.counts.CoursesCreated),
		zap.Int("enrollments_created", run.counts.EnrollmentsCreated),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	s.observe(upload.Kind, string(models.IngestionCommitted), start, rows, nil, map[string]int{
		"student":    run.counts.StudentsCreated,
		"course":     run.counts.CoursesCreated,
		"enrollment": run.counts.EnrollmentsCreated,
	})
	return &IngestionResult{Status: models.IngestionCommitted, Counts: run.counts}, nil
}

func (s *IngestionService) storageError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("ingestion aborted: %w", err)
	case database.IsUniqueViolation(err):
		return appErrors.Wrap(err, appErrors.ErrPersistenceConflict.Code, appErrors.ErrPersistenceConflict.Status, appErrors.ErrPersistenceConflict.Message)
	default:
		s.logger.Error("ingestion storage failure", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
}

func (s *IngestionService) observe(kind tabular.Kind, outcome string, start time.Time, rows, diags, committed map[string]int) {
	s.metrics.ObserveIngestion(IngestionObservation{
		Kind:        string(kind),
		Outcome:     outcome,
		Duration:    s.now().Sub(start),
		Rows:        rows,
		Diagnostics: diags,
		Committed:   committed,
	})
}

func countKinds(diags []ingest.Diagnostic) map[string]int {
	out := make(map[string]int)
	for _, d := range diags {
		out[string(d.Kind)]++
	}
	return out
}

// ingestionRun is the state of a single Ingest call.
type ingestionRun struct {
	tx       ingest.Transaction
	rules    *ingest.Rules
	cfg      config.IngestionConfig
	ctx      ingest.Context
	resolver *ingest.Resolver
	diags    *ingest.Diagnostics
	counts   models.IngestionCounts

	// studentsUnknown is set when the student table could not be read row
	// by row, so enrollment rows cannot be checked against it.
	studentsUnknown bool
}

func (r *ingestionRun) students(ctx context.Context, table *tabular.Table) error {
	if table == nil {
		return nil
	}
	v := ingest.NewStudentValidator(table, r.rules, r.ctx, r.cfg.StudentRequired)
	if header := v.HeaderDiagnostics(); len(header) > 0 {
		r.diags.Add(header...)
		r.studentsUnknown = true
		return nil
	}

	candidates := make([]ingest.StudentCandidate, 0, len(table.Rows))
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		student, diags := v.Validate(row)
		if len(diags) > 0 {
			r.diags.Add(diags...)
			r.resolver.RejectStudent(student.ID)
			continue
		}
		candidates = append(candidates, ingest.StudentCandidate{Line: row.Line, Student: student})
	}

	fresh, skipped, err := r.resolver.RegisterStudents(ctx, candidates)
	if err != nil {
		return err
	}
	r.counts.StudentsSkipped = skipped
	if !r.diags.Empty() {
		return nil
	}

	for i := range fresh {
		created, err := r.tx.CreateStudent(ctx, &fresh[i].Student)
		if err != nil {
			return err
		}
		if created {
			r.counts.StudentsCreated++
		} else {
			r.counts.StudentsSkipped++
		}
	}
	return nil
}

func (r *ingestionRun) enrollments(ctx context.Context, table *tabular.Table) error {
	if table == nil {
		return nil
	}
	v := ingest.NewEnrollmentValidator(table, r.rules, r.ctx, r.cfg.EnrollmentRequired)
	if header := v.HeaderDiagnostics(); len(header) > 0 {
		r.diags.Add(header...)
		return nil
	}

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidate, diags := v.Validate(row)
		if len(diags) > 0 {
			r.diags.Add(diags...)
			continue
		}
		if r.studentsUnknown {
			continue
		}

		state, err := r.resolver.ResolveStudent(ctx, candidate.StudentID)
		if err != nil {
			return err
		}
		switch state {
		case ingest.StudentRejected:
			continue
		case ingest.StudentUnknown:
			r.diags.Add(ingest.Diagnostic{
				Table:   tabular.TableEnrollments,
				Line:    candidate.Line,
				Col:     candidate.StudentCol,
				Column:  ingest.ColUniqueID,
				Message: fmt.Sprintf("matching student not found for %s %q", ingest.ColUniqueID, candidate.StudentID),
				Kind:    ingest.KindResolution,
			})
			continue
		}

		// The batch is already lost; keep validating but stop writing.
		if !r.diags.Empty() {
			continue
		}

		courseID, err := r.resolver.ResolveCourse(ctx, candidate.Course)
		if err != nil {
			return err
		}
		enrollment := models.Enrollment{
			StudentID:      candidate.StudentID,
			CourseID:       courseID,
			Grade:          candidate.Grade,
			ProgramLevel:   candidate.ProgramLevel,
			SubprogramCode: candidate.SubprogramCode,
			SubprogramDesc: candidate.SubprogramDesc,
		}
		created, err := r.tx.CreateEnrollment(ctx, &enrollment)
		if err != nil {
			return err
		}
		if created {
			r.counts.EnrollmentsCreated++
		} else {
			r.counts.EnrollmentsSkipped++
		}
	}
	return nil
}
