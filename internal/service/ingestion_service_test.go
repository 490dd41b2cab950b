package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/stem-dashboard-api/internal/ingest"
	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
	appErrors "github.com/noah-isme/stem-dashboard-api/pkg/errors"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

var ingestionNow = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

type enrollmentKey struct{ student, course string }

// memoryDB is a transactional in-memory stand-in for PostgreSQL.
type memoryDB struct {
	students    map[string]models.Student
	courses     map[models.CourseKey]models.Course
	enrollments map[enrollmentKey]models.Enrollment
	nextID      int

	begins    int
	commits   int
	rollbacks int
	commitErr error
	existErr  error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		students:    map[string]models.Student{},
		courses:     map[models.CourseKey]models.Course{},
		enrollments: map[enrollmentKey]models.Enrollment{},
	}
}

func (m *memoryDB) Begin(context.Context) (ingest.Transaction, error) {
	m.begins++
	return &memoryTx{
		db:          m,
		students:    map[string]models.Student{},
		courses:     map[models.CourseKey]models.Course{},
		enrollments: map[enrollmentKey]models.Enrollment{},
	}, nil
}

type memoryTx struct {
	db          *memoryDB
	students    map[string]models.Student
	courses     map[models.CourseKey]models.Course
	enrollments map[enrollmentKey]models.Enrollment
	done        bool
}

func (t *memoryTx) StudentsExist(_ context.Context, ids []string) (map[string]bool, error) {
	if t.db.existErr != nil {
		return nil, t.db.existErr
	}
	out := map[string]bool{}
	for _, id := range ids {
		_, stored := t.db.students[id]
		_, staged := t.students[id]
		if stored || staged {
			out[id] = true
		}
	}
	return out, nil
}

func (t *memoryTx) CreateStudent(_ context.Context, s *models.Student) (bool, error) {
	if _, ok := t.db.students[s.ID]; ok {
		return false, nil
	}
	if _, ok := t.students[s.ID]; ok {
		return false, nil
	}
	t.students[s.ID] = *s
	return true, nil
}

func (t *memoryTx) FindOrCreateCourse(_ context.Context, c *models.Course) (bool, error) {
	if stored, ok := t.db.courses[c.Key()]; ok {
		c.ID = stored.ID
		return false, nil
	}
	if staged, ok := t.courses[c.Key()]; ok {
		c.ID = staged.ID
		return false, nil
	}
	t.db.nextID++
	c.ID = fmt.Sprintf("course-%d", t.db.nextID)
	t.courses[c.Key()] = *c
	return true, nil
}

func (t *memoryTx) CreateEnrollment(_ context.Context, e *models.Enrollment) (bool, error) {
	key := enrollmentKey{e.StudentID, e.CourseID}
	if _, ok := t.db.enrollments[key]; ok {
		return false, nil
	}
	if _, ok := t.enrollments[key]; ok {
		return false, nil
	}
	if _, ok := t.db.students[e.StudentID]; !ok {
		if _, ok := t.students[e.StudentID]; !ok {
			return false, fmt.Errorf("foreign key violation on student %s", e.StudentID)
		}
	}
	t.db.nextID++
	e.ID = fmt.Sprintf("enrollment-%d", t.db.nextID)
	t.enrollments[key] = *e
	return true, nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if t.db.commitErr != nil {
		return t.db.commitErr
	}
	for k, v := range t.students {
		t.db.students[k] = v
	}
	for k, v := range t.courses {
		t.db.courses[k] = v
	}
	for k, v := range t.enrollments {
		t.db.enrollments[k] = v
	}
	t.db.commits++
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.db.rollbacks++
	return nil
}

type recordingCache struct {
	patterns []string
}

func (r *recordingCache) Invalidate(_ context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func testIngestionConfig() config.IngestionConfig {
	return config.IngestionConfig{
		StudentSheet:            "students",
		EnrollmentSheet:         "enrollments",
		StudentRequired:         []string{"Unique_ID", "Admit_Year", "Admit_Term", "Major_1", "Major_1_Desc", "Class", "Race", "Sex"},
		EnrollmentRequired:      []string{"Unique_ID", "Course_Term", "Course_Number", "Course_Grade", "Course_Title"},
		SATMathMin:              200,
		SATMathMax:              800,
		SATTotalMin:             400,
		SATTotalMax:             1600,
		ACTMin:                  1,
		ACTMax:                  36,
		MathPlacementMax:        100,
		RequireEnrollmentsSheet: true,
	}
}

func newTestIngestionService(db *memoryDB, cache cacheInvalidator) *IngestionService {
	svc := NewIngestionService(db, cache, NewMetricsService(), nil, testIngestionConfig(), nil)
	svc.now = func() time.Time { return ingestionNow }
	return svc
}

var scenarioStudentHeader = []string{
	"Unique_ID", "First_Name", "Last_Name", "Admit_Year", "Admit_Term", "Major_1", "Major_1_Desc",
	"Class", "Race", "Sex", "First_Gen", "GPA_Cumulative", "HS_GPA", "SAT_Math", "SAT_Total", "Leave_Date", "Honors",
}

var scenarioEnrollmentHeader = []string{
	"Unique_ID", "Course_Term", "Term_Code", "Course_Section", "Course_Year", "Course_Number", "Course_Grade", "Course_Title",
}

// scenarioStudents returns 13 valid student rows.
func scenarioStudents() [][]string {
	classes := []string{"FR", "SO", "JR", "SR"}
	races := []string{"Asian", "White", "Hispanic or Latino", "Black or African American"}
	rows := make([][]string, 0, 13)
	for i := 1; i <= 13; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("S%02d", i), "First", "Last", fmt.Sprintf("%d", 2019+i%4), "FA", "CS", "Computer Science",
			classes[i%4], races[i%4], []string{"M", "F"}[i%2], []string{"Y", "N"}[i%2],
			fmt.Sprintf("%.2f", 2.0+float64(i)/10), "3.50", "650", "1300", "", "N",
		})
	}
	return rows
}

var scenarioCourses = [][]string{
	{"FA 2022", "202210", "01", "2022", "CS-3350", "Data Structures"},
	{"FA 2022", "202210", "02", "2022", "CS-3350", "Data Structures"},
	{"SP 2023", "202320", "01", "2023", "MATH1010", "Calculus I"},
	{"SP 2023", "202320", "01", "2023", "PHYS2010", "Physics I"},
	{"SU 2023", "202330", "", "2023", "CHEM1010", "General Chemistry"},
	{"FA 2023", "202410", "01", "", "BIOL-1010", "Biology"},
}

// scenarioEnrollments returns 15 valid enrollment rows over the 6 offerings.
// Rows 0 and 1 share an offering.
func scenarioEnrollments() [][]string {
	grades := []string{"A", "B+", "IP", "W", "C-", "P", "D"}
	rows := make([][]string, 0, 15)
	for i := 0; i < 15; i++ {
		course := scenarioCourses[i%5+1]
		if i == 0 || i == 1 {
			course = scenarioCourses[0]
		}
		student := fmt.Sprintf("S%02d", i%13+1)
		row := append([]string{student}, course[:5]...)
		row = append(row, grades[i%len(grades)], course[5])
		rows = append(rows, row)
	}
	return rows
}

func buildWorkbook(t *testing.T, students, enrollments [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, f.SetSheetName("Sheet1", "students"))
	_, err := f.NewSheet("enrollments")
	require.NoError(t, err)

	write := func(sheet string, header []string, rows [][]string) {
		all := append([][]string{header}, rows...)
		for i, row := range all {
			cells := make([]interface{}, len(row))
			for j, v := range row {
				cells[j] = v
			}
			ref, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sheet, ref, &cells))
		}
	}
	write("students", scenarioStudentHeader, students)
	write("enrollments", scenarioEnrollmentHeader, enrollments)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func csvPayload(header []string, rows [][]string) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(header, ",") + "\n")
	for _, row := range rows {
		b.WriteString(strings.Join(row, ",") + "\n")
	}
	return []byte(b.String())
}

func spreadsheetUpload(payload []byte) Upload {
	return Upload{Kind: tabular.KindSpreadsheet, Payload: payload, Filename: "export.xlsx"}
}

func TestIngestEndToEndScenario(t *testing.T) {
	db := newMemoryDB()
	cache := &recordingCache{}
	svc := newTestIngestionService(db, cache)

	result, err := svc.Ingest(context.Background(), spreadsheetUpload(buildWorkbook(t, scenarioStudents(), scenarioEnrollments())))
	require.NoError(t, err)
	require.True(t, result.Committed(), "report: %+v", result.Report)
	assert.Empty(t, result.Report)

	assert.Len(t, db.students, 13)
	assert.Len(t, db.courses, 6)
	assert.Len(t, db.enrollments, 15)
	assert.Equal(t, models.IngestionCounts{StudentsCreated: 13, CoursesCreated: 6, EnrollmentsCreated: 15}, result.Counts)
	assert.Equal(t, []string{SummaryCachePattern}, cache.patterns)

	sharedKey := models.CourseKey{CourseNum: "CS-3350", Semester: "FA", Year: 2022, Section: "01", Title: "Data Structures"}
	shared := db.courses[sharedKey]
	require.NotEmpty(t, shared.ID)
	_, first := db.enrollments[enrollmentKey{"S01", shared.ID}]
	_, second := db.enrollments[enrollmentKey{"S02", shared.ID}]
	assert.True(t, first && second, "both rows reference the same offering")

	s := db.students["S02"]
	assert.Equal(t, string(models.ClassJunior), s.ClassStanding.String)
	assert.False(t, s.LeaveDate.Valid)
}

func TestIngestScenarioWithThreeDefectsCommitsNothing(t *testing.T) {
	students := scenarioStudents()
	students[2][15] = "2031-01-01" // Leave_Date in the future
	students[4][10] = "Maybe"      // First_Gen
	students[6][13] = "900"        // SAT_Math

	db := newMemoryDB()
	cache := &recordingCache{}
	svc := newTestIngestionService(db, cache)

	result, err := svc.Ingest(context.Background(), spreadsheetUpload(buildWorkbook(t, students, scenarioEnrollments())))
	require.NoError(t, err)
	require.False(t, result.Committed())
	assert.Equal(t, models.IngestionRejected, result.Status)

	require.Len(t, result.Report, 3)
	assert.Equal(t, 4, result.Report[0].LineNum)
	assert.Contains(t, result.Report[0].ErrorMessage, "Leave_Date")
	assert.Equal(t, 6, result.Report[1].LineNum)
	assert.Contains(t, result.Report[1].ErrorMessage, `invalid First_Gen "Maybe"`)
	assert.Equal(t, 8, result.Report[2].LineNum)
	assert.Contains(t, result.Report[2].ErrorMessage, "SAT_Math 900 out of range")
	for _, entry := range result.Report {
		require.NotNil(t, entry.ColNum)
	}

	assert.Empty(t, db.students)
	assert.Empty(t, db.courses)
	assert.Empty(t, db.enrollments)
	assert.Equal(t, 1, db.rollbacks)
	assert.Zero(t, db.commits)
	assert.Empty(t, cache.patterns)
}

func TestIngestResubmissionIsIdempotent(t *testing.T) {
	db := newMemoryDB()
	svc := newTestIngestionService(db, nil)
	payload := buildWorkbook(t, scenarioStudents(), scenarioEnrollments())

	_, err := svc.Ingest(context.Background(), spreadsheetUpload(payload))
	require.NoError(t, err)

	result, err := svc.Ingest(context.Background(), spreadsheetUpload(payload))
	require.NoError(t, err)
	require.True(t, result.Committed())
	assert.Equal(t, models.IngestionCounts{StudentsSkipped: 13, EnrollmentsSkipped: 15}, result.Counts)
	assert.Len(t, db.students, 13)
	assert.Len(t, db.courses, 6)
	assert.Len(t, db.enrollments, 15)
}

func TestIngestDuplicateStudentInBatchFirstRowWins(t *testing.T) {
	students := scenarioStudents()[:2]
	dup := append([]string{}, students[0]...)
	dup[1] = "Second"
	students = append(students, dup)

	db := newMemoryDB()
	svc := newTestIngestionService(db, nil)
	result, err := svc.Ingest(context.Background(), spreadsheetUpload(buildWorkbook(t, students, nil)))
	require.NoError(t, err)
	require.True(t, result.Committed())
	assert.Equal(t, 2, result.Counts.StudentsCreated)
	assert.Equal(t, 1, result.Counts.StudentsSkipped)
	assert.Equal(t, "First", db.students["S01"].FirstName.String)
}

func TestIngestMissingDependency(t *testing.T) {
	db := newMemoryDB()
	svc := newTestIngestionService(db, nil)

	enrollments := [][]string{
		{"S01", "FA 2022", "", "01", "2022", "CS-3350", "A", "Data Structures"},
		{"GHOST", "FA 2022", "", "01", "2022", "CS-3350", "B", "Data Structures"},
	}
	result, err := svc.Ingest(context.Background(), spreadsheetUpload(buildWorkbook(t, scenarioStudents()[:1], enrollments)))
	require.NoError(t, err)
	require.False(t, result.Committed())
	require.Len(t, result.Report, 1)
	assert.Equal(t, `matching student not found for Unique_ID "GHOST"`, result.Report[0].ErrorMessage)
	assert.Equal(t, 3, result.Report[0].LineNum)
	assert.Equal(t, "enrollments", result.Report[0].Sheet)
	assert.Empty(t, db.students)
	assert.Empty(t, db.courses)
}

func TestIngestEnrollmentCSVResolvesStoredStudents(t *testing.T) {
	db := newMemoryDB()
	db.students["S01"] = models.Student{ID: "S01"}
	svc := newTestIngestionService(db, nil)

	payload := csvPayload(scenarioEnrollmentHeader, [][]string{
		{"S01", "FA 2022", "", "01", "2022", "CS-3350", "A", "Data Structures"},
	})
	result, err := svc.Ingest(context.Background(), Upload{Kind: tabular.KindCSV, Payload: payload, Filename: "enrollments.csv"})
	require.NoError(t, err)
	require.True(t, result.Committed())
	assert.Equal(t, 1, result.Counts.EnrollmentsCreated)
	assert.Equal(t, 1, result.Counts.CoursesCreated)
}

func TestIngestCompleteDiagnostics(t *testing.T) {
	students := scenarioStudents()
	students[0][11] = "4.01"
	students[5][11] = "-0.01"
	students[9][8] = "Martian"
	students[12][3] = "2030"

	db := newMemoryDB()
	svc := newTestIngestionService(db, nil)
	payload := csvPayload(scenarioStudentHeader, students)

	result, err := svc.Ingest(context.Background(), Upload{Kind: tabular.KindCSV, Payload: payload, Filename: "students.csv"})
	require.NoError(t, err)
	require.Len(t, result.Report, 4)
	lines := []int{result.Report[0].LineNum, result.Report[1].LineNum, result.Report[2].LineNum, result.Report[3].LineNum}
	assert.Equal(t, []int{2, 7, 11, 14}, lines)
	assert.Empty(t, db.students)
}

func TestIngestHeaderProblemsStopRowChecks(t *testing.T) {
	header := append([]string{}, scenarioStudentHeader...)
	header[9] = "Gender"

	db := newMemoryDB()
	svc := newTestIngestionService(db, nil)
	payload := csvPayload(header, scenarioStudents())

	result, err := svc.Ingest(context.Background(), Upload{Kind: tabular.KindCSV, Payload: payload})
	require.NoError(t, err)
	require.Len(t, result.Report, 1)
	assert.Equal(t, 1, result.Report[0].LineNum)
	assert.Equal(t, "missing column Sex", result.Report[0].ErrorMessage)
}

func TestIngestUnreadablePayload(t *testing.T) {
	db := newMemoryDB()
	svc := newTestIngestionService(db, nil)

	result, err := svc.Ingest(context.Background(), Upload{Kind: tabular.KindSpreadsheet, Payload: []byte("not a workbook")})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, appErrors.ErrSourceUnreadable))
	assert.Zero(t, db.begins)
}

func TestIngestCommitConflictRollsBack(t *testing.T) {
	db := newMemoryDB()
	db.commitErr = &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	cache := &recordingCache{}
	svc := newTestIngestionService(db, cache)

	_, err := svc.Ingest(context.Background(), spreadsheetUpload(buildWorkbook(t, scenarioStudents(), scenarioEnrollments())))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPersistenceConflict))
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.Empty(t, db.students)
	assert.Empty(t, cache.patterns)
}

func TestIngestStorageFailureIsInternal(t *testing.T) {
	db := newMemoryDB()
	db.existErr = errors.New("connection reset by peer")
	svc := newTestIngestionService(db, nil)

	_, err := svc.Ingest(context.Background(), spreadsheetUpload(buildWorkbook(t, scenarioStudents(), nil)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Equal(t, 1, db.rollbacks)
}

func TestIngestCancelledContextRollsBack(t *testing.T) {
	db := newMemoryDB()
	svc := newTestIngestionService(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, spreadsheetUpload(buildWorkbook(t, scenarioStudents(), scenarioEnrollments())))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, db.students)
	assert.Equal(t, 1, db.rollbacks)
}
