package ingest

import (
	"fmt"

	"github.com/volatiletech/null/v8"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

// EnrollmentCandidate is a decoded enrollment row whose student and course
// are not resolved yet.
type EnrollmentCandidate struct {
	Line           int
	StudentID      string
	StudentCol     int
	Course         models.Course
	Grade          models.Grade
	ProgramLevel   null.String
	SubprogramCode null.String
	SubprogramDesc null.String
}

// EnrollmentValidator decodes rows of the enrollments table.
type EnrollmentValidator struct {
	cols  *columnSet
	rules *Rules
	ctx   Context
}

// NewEnrollmentValidator resolves the table's columns. required adds to the
// columns every enrollment row must carry.
func NewEnrollmentValidator(table *tabular.Table, rules *Rules, ctx Context, required []string) *EnrollmentValidator {
	return &EnrollmentValidator{
		cols:  newColumnSet(table, EnrollmentColumns, enrollmentKeyColumns, required),
		rules: rules,
		ctx:   ctx,
	}
}

// HeaderDiagnostics reports required columns missing from the header.
func (v *EnrollmentValidator) HeaderDiagnostics() []Diagnostic {
	return v.cols.header
}

// Validate decodes row, returning every rule it breaks.
func (v *EnrollmentValidator) Validate(row tabular.Row) (EnrollmentCandidate, []Diagnostic) {
	d := &rowDecoder{cols: v.cols, rules: v.rules, row: row}
	c := EnrollmentCandidate{Line: row.Line}

	idCell := d.take(ColUniqueID)
	c.StudentID = idCell.Value
	c.StudentCol = idCell.Col

	cell := d.take(ColCourseTerm)
	semester, termYear, ferr := v.rules.Term(v.ctx, cell, ColCourseTerm)
	d.check(ColCourseTerm, cell, ferr)
	c.Course.Semester = semester
	c.Course.Year = termYear

	cell = d.take(ColCourseYear)
	year, ferr := v.rules.Year(v.ctx, cell, ColCourseYear)
	d.check(ColCourseYear, cell, ferr)
	if year.Valid && termYear != 0 && int(year.Int) != termYear {
		d.check(ColCourseYear, cell, fieldErrorf("%s %d does not match %s %q", ColCourseYear, year.Int, ColCourseTerm, fmt.Sprintf("%s %d", semester, termYear)))
	}

	c.Course.TermCode = d.text(ColTermCode)
	if section := d.text(ColCourseSection); section.Valid {
		c.Course.Section = section.String
	}

	cell = d.take(ColCourseNumber)
	c.Course.CourseNum, ferr = v.rules.CourseNumber(cell, ColCourseNumber)
	d.check(ColCourseNumber, cell, ferr)

	c.Course.Title = d.text(ColCourseTitle).String

	cell = d.take(ColCourseGrade)
	c.Grade, ferr = v.rules.Grade(cell, ColCourseGrade)
	d.check(ColCourseGrade, cell, ferr)

	cell = d.take(ColProgramLevel)
	c.ProgramLevel, ferr = v.rules.Enum(cell, ColProgramLevel, tagProgramLevel, models.ProgramLevels)
	d.check(ColProgramLevel, cell, ferr)

	c.SubprogramCode = d.text(ColSubprogramCode)

	cell = d.take(ColSubprogramDesc)
	c.SubprogramDesc, ferr = v.rules.SubprogramDesc(cell, ColSubprogramDesc)
	d.check(ColSubprogramDesc, cell, ferr)

	return c, d.diags
}
