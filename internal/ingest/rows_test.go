package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

var defaultStudentRequired = []string{ColUniqueID, ColAdmitYear, ColAdmitTerm, ColMajor1, ColMajor1Desc, ColClass, ColRace, ColSex}

func studentTable(header []string, rows ...[]string) *tabular.Table {
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 2
	}
	return tabular.NewTable(tabular.TableStudents, header, rows, lines)
}

var studentHeader = []string{"Unique_ID", "Admit_Year", "Admit_Term", "Major_1", "Major_1_Desc", "Class", "Race", "Sex", "GPA_Cumulative", "SAT_Math", "First_Gen", "Leave_Date"}

func TestStudentValidatorDecodesRow(t *testing.T) {
	table := studentTable(studentHeader,
		[]string{"S100", "2021", "FA", "CS", "Computer Science", "SO", "Asian", "F", "3.70", "720", "Y", "NA"},
	)
	v := NewStudentValidator(table, NewRules(nil), testContext(), defaultStudentRequired)
	require.Empty(t, v.HeaderDiagnostics())

	student, diags := v.Validate(table.Rows[0])
	require.Empty(t, diags)
	assert.Equal(t, "S100", student.ID)
	assert.Equal(t, 2021, student.AdmitYear.Int)
	assert.Equal(t, string(models.ClassSophomore), student.ClassStanding.String)
	assert.Equal(t, 3.7, student.GPACumulative.Float64)
	assert.True(t, student.FirstGen.Bool)
	assert.False(t, student.LeaveDate.Valid)
	assert.False(t, student.Honors.Valid)
}

func TestStudentValidatorReportsEveryFailure(t *testing.T) {
	table := studentTable(studentHeader,
		[]string{"S101", "2030", "FALL", "", "Computer Science", "Junior", "Asian", "F", "4.5", "900", "maybe", "2099-01-01"},
	)
	v := NewStudentValidator(table, NewRules(nil), testContext(), defaultStudentRequired)

	_, diags := v.Validate(table.Rows[0])
	require.Len(t, diags, 8)

	cols := make([]int, len(diags))
	for i, d := range diags {
		assert.Equal(t, 2, d.Line)
		assert.Equal(t, KindField, d.Kind)
		cols[i] = d.Col
	}
	assert.Equal(t, []int{2, 3, 4, 6, 9, 10, 12, 11}, cols)
	assert.Equal(t, "missing Major_1", diags[2].Message)
}

func TestStudentValidatorHeaderHint(t *testing.T) {
	header := []string{"Unique_ID", "Admit_Yr", "Admit_Term", "Major_1", "Major_1_Desc", "Class", "Race", "Sex"}
	table := studentTable(header, []string{"S1", "2021", "FA", "CS", "CS", "FR", "Asian", "M"})

	v := NewStudentValidator(table, NewRules(nil), testContext(), defaultStudentRequired)
	diags := v.HeaderDiagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, 1, diags[0].Line)
	assert.Equal(t, KindHeader, diags[0].Kind)
	assert.Equal(t, `missing column Admit_Year (did you mean "Admit_Yr"?)`, diags[0].Message)
}

func TestStudentValidatorConfiguredRequirementsMatchLoosely(t *testing.T) {
	table := studentTable([]string{"unique id", "hs gpa"}, []string{"S1", ""})
	v := NewStudentValidator(table, NewRules(nil), testContext(), []string{"HS GPA"})
	require.Empty(t, v.HeaderDiagnostics())

	_, diags := v.Validate(table.Rows[0])
	require.Len(t, diags, 1)
	assert.Equal(t, "missing HS_GPA", diags[0].Message)
	assert.Equal(t, 2, diags[0].Col)
}

var enrollmentHeader = []string{"Unique_ID", "Course_Term", "Term_Code", "Course_Section", "Course_Year", "Course_Number", "Course_Grade", "Course_Title", "Program_Level", "Subprogram_Code", "Subprogram_Desc"}

func enrollmentTable(rows ...[]string) *tabular.Table {
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 2
	}
	return tabular.NewTable(tabular.TableEnrollments, enrollmentHeader, rows, lines)
}

func TestEnrollmentValidatorDecodesRow(t *testing.T) {
	table := enrollmentTable([]string{"S1", "FA 2022", "202210", "01", "2022", "CS-3350", "IP", "Data Structures", "UNDG", "CS", "Day - Computer Science"})
	v := NewEnrollmentValidator(table, NewRules(nil), testContext(), nil)

	c, diags := v.Validate(table.Rows[0])
	require.Empty(t, diags)
	assert.Equal(t, "S1", c.StudentID)
	assert.Equal(t, 1, c.StudentCol)
	assert.Equal(t, models.CourseKey{CourseNum: "CS-3350", Semester: "FA", Year: 2022, Section: "01", Title: "Data Structures"}, c.Course.Key())
	assert.Equal(t, "202210", c.Course.TermCode.String)
	assert.Equal(t, models.GradeInProgress, c.Grade)
}

func TestEnrollmentValidatorYearMustAgreeWithTerm(t *testing.T) {
	table := enrollmentTable([]string{"S1", "FA 2022", "", "", "2021", "CS-3350", "A", "Data Structures", "", "", ""})
	v := NewEnrollmentValidator(table, NewRules(nil), testContext(), nil)

	_, diags := v.Validate(table.Rows[0])
	require.Len(t, diags, 1)
	assert.Equal(t, 5, diags[0].Col)
	assert.Contains(t, diags[0].Message, "does not match")
}

func TestEnrollmentValidatorRejectsBadValues(t *testing.T) {
	table := enrollmentTable([]string{"", "Fall 2022", "", "", "", "CS3", "Z", "", "PHD", "", "Night - CS"})
	v := NewEnrollmentValidator(table, NewRules(nil), testContext(), nil)

	_, diags := v.Validate(table.Rows[0])
	messages := make([]string, len(diags))
	for i, d := range diags {
		messages[i] = d.Message
	}
	assert.Equal(t, []string{
		"missing Unique_ID",
		`invalid Course_Term semester "Fall" (must be one of FA, SP, SU, WI)`,
		`invalid Course_Number "CS3" (length must be between 7 and 9)`,
		"missing Course_Title",
		`invalid Course_Grade "Z" (must be one of A, A-, B+, B, B-, C+, C, C-, D+, D, D-, F, W, P, IP)`,
		`invalid Program_Level "PHD" (must be one of UNDG, GRAD)`,
		`invalid Subprogram_Desc "Night - CS" (must start with "Day - " or "Graduate - ")`,
	}, messages)
}

func TestEnrollmentValidatorMissingHeader(t *testing.T) {
	table := tabular.NewTable(tabular.TableEnrollments, []string{"Unique_ID", "Course_Term", "Course_Number", "Course_Title"}, nil, nil)
	v := NewEnrollmentValidator(table, NewRules(nil), testContext(), nil)

	diags := v.HeaderDiagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "missing column Course_Grade", diags[0].Message)
}
