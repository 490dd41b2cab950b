package ingest

import (
	"github.com/volatiletech/null/v8"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

// StudentValidator decodes rows of the students table.
type StudentValidator struct {
	cols  *columnSet
	rules *Rules
	ctx   Context
}

// NewStudentValidator resolves the table's columns. required adds to the
// columns every student row must carry.
func NewStudentValidator(table *tabular.Table, rules *Rules, ctx Context, required []string) *StudentValidator {
	return &StudentValidator{
		cols:  newColumnSet(table, StudentColumns, studentKeyColumns, required),
		rules: rules,
		ctx:   ctx,
	}
}

// HeaderDiagnostics reports required columns missing from the header. When
// non-empty, rows must not be validated.
func (v *StudentValidator) HeaderDiagnostics() []Diagnostic {
	return v.cols.header
}

// Validate decodes row into a student, returning every rule it breaks.
func (v *StudentValidator) Validate(row tabular.Row) (models.Student, []Diagnostic) {
	d := &rowDecoder{cols: v.cols, rules: v.rules, row: row}
	var s models.Student

	s.ID = d.text(ColUniqueID).String
	s.FirstName = d.text(ColFirstName)
	s.LastName = d.text(ColLastName)

	cell := d.take(ColAdmitYear)
	var ferr *FieldError
	s.AdmitYear, ferr = v.rules.Year(v.ctx, cell, ColAdmitYear)
	d.check(ColAdmitYear, cell, ferr)

	cell = d.take(ColAdmitTerm)
	s.AdmitTerm, ferr = v.rules.Enum(cell, ColAdmitTerm, tagSemester, models.Semesters)
	d.check(ColAdmitTerm, cell, ferr)

	s.AdmitType = d.text(ColAdmitType)
	s.Major1 = d.text(ColMajor1)
	s.Major1Desc = d.text(ColMajor1Desc)
	s.Major2 = d.text(ColMajor2)
	s.Major2Desc = d.text(ColMajor2Desc)
	s.Major3 = d.text(ColMajor3)
	s.Major3Desc = d.text(ColMajor3Desc)
	s.Minor1 = d.text(ColMinor1)
	s.Minor2 = d.text(ColMinor2)
	s.Minor3 = d.text(ColMinor3)
	s.Concentration1 = d.text(ColConcentration1)
	s.Concentration2 = d.text(ColConcentration2)
	s.Concentration3 = d.text(ColConcentration3)

	cell = d.take(ColClass)
	s.ClassStanding, ferr = v.rules.Class(cell, ColClass)
	d.check(ColClass, cell, ferr)

	s.City = d.text(ColCity)
	s.State = d.text(ColState)
	s.Country = d.text(ColCountry)
	s.PostalCode = d.text(ColPostalCode)

	cell = d.take(ColRace)
	s.RaceEthnicity, ferr = v.rules.Enum(cell, ColRace, tagRace, Races)
	d.check(ColRace, cell, ferr)

	cell = d.take(ColSex)
	s.Sex, ferr = v.rules.Enum(cell, ColSex, tagSex, Sexes)
	d.check(ColSex, cell, ferr)

	cell = d.take(ColGPACumulative)
	s.GPACumulative, ferr = v.rules.GPA(cell, ColGPACumulative)
	d.check(ColGPACumulative, cell, ferr)

	cell = d.take(ColHSGPA)
	s.HSGPA, ferr = v.rules.GPA(cell, ColHSGPA)
	d.check(ColHSGPA, cell, ferr)

	b := v.ctx.Bounds
	cell = d.take(ColSATMath)
	s.SATMath, ferr = v.rules.IntRange(cell, ColSATMath, b.SATMathMin, b.SATMathMax)
	d.check(ColSATMath, cell, ferr)

	cell = d.take(ColSATTotal)
	s.SATTotal, ferr = v.rules.IntRange(cell, ColSATTotal, b.SATTotalMin, b.SATTotalMax)
	d.check(ColSATTotal, cell, ferr)

	cell = d.take(ColACTScore)
	s.ACTScore, ferr = v.rules.IntRange(cell, ColACTScore, b.ACTMin, b.ACTMax)
	d.check(ColACTScore, cell, ferr)

	cell = d.take(ColMathPlacement)
	s.MathPlacementScore, ferr = v.rules.NonNegative(cell, ColMathPlacement, b.MathPlacementMax)
	d.check(ColMathPlacement, cell, ferr)

	s.HSName = d.text(ColHSName)
	s.HSCity = d.text(ColHSCity)
	s.HSState = d.text(ColHSState)
	s.HSCEEB = d.text(ColHSCEEB)

	cell = d.take(ColLeaveDate)
	s.LeaveDate, ferr = v.rules.Date(v.ctx, cell, ColLeaveDate)
	d.check(ColLeaveDate, cell, ferr)
	s.LeaveReason = d.text(ColLeaveReason)

	flags := []struct {
		name string
		dst  *null.Bool
	}{
		{ColFirstGen, &s.FirstGen},
		{ColHonors, &s.Honors},
		{ColCompass, &s.Compass},
		{ColAustin, &s.Austin},
		{ColAthlete, &s.Athlete},
	}
	for _, f := range flags {
		cell = d.take(f.name)
		*f.dst, ferr = v.rules.Flag(cell, f.name)
		d.check(f.name, cell, ferr)
	}

	return s, d.diags
}
