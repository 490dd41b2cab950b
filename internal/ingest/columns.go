package ingest

import (
	"fmt"

	"github.com/agnivade/levenshtein"
	"github.com/volatiletech/null/v8"

	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

// Student export columns.
const (
	ColUniqueID       = "Unique_ID"
	ColFirstName      = "First_Name"
	ColLastName       = "Last_Name"
	ColAdmitYear      = "Admit_Year"
	ColAdmitTerm      = "Admit_Term"
	ColAdmitType      = "Admit_Type"
	ColMajor1         = "Major_1"
	ColMajor1Desc     = "Major_1_Desc"
	ColMajor2         = "Major_2"
	ColMajor2Desc     = "Major_2_Desc"
	ColMajor3         = "Major_3"
	ColMajor3Desc     = "Major_3_Desc"
	ColMinor1         = "Minor_1"
	ColMinor2         = "Minor_2"
	ColMinor3         = "Minor_3"
	ColConcentration1 = "Concentration_1"
	ColConcentration2 = "Concentration_2"
	ColConcentration3 = "Concentration_3"
	ColClass          = "Class"
	ColCity           = "City"
	ColState          = "State"
	ColCountry        = "Country"
	ColPostalCode     = "Postal_Code"
	ColRace           = "Race"
	ColSex            = "Sex"
	ColFirstGen       = "First_Gen"
	ColGPACumulative  = "GPA_Cumulative"
	ColHSGPA          = "HS_GPA"
	ColSATMath        = "SAT_Math"
	ColSATTotal       = "SAT_Total"
	ColACTScore       = "ACT_Score"
	ColMathPlacement  = "Math_Placement"
	ColHSName         = "HS_Name"
	ColHSCity         = "HS_City"
	ColHSState        = "HS_State"
	ColHSCEEB         = "HS_CEEB"
	ColLeaveDate      = "Leave_Date"
	ColLeaveReason    = "Leave_Reason"
	ColHonors         = "Honors"
	ColCompass        = "Compass"
	ColAustin         = "Austin"
	ColAthlete        = "Athlete"
)

// Enrollment export columns.
const (
	ColCourseTerm     = "Course_Term"
	ColTermCode       = "Term_Code"
	ColCourseSection  = "Course_Section"
	ColCourseYear     = "Course_Year"
	ColCourseNumber   = "Course_Number"
	ColCourseGrade    = "Course_Grade"
	ColCourseTitle    = "Course_Title"
	ColProgramLevel   = "Program_Level"
	ColSubprogramCode = "Subprogram_Code"
	ColSubprogramDesc = "Subprogram_Desc"
)

// StudentColumns lists every student column in export order.
var StudentColumns = []string{
	ColUniqueID, ColFirstName, ColLastName, ColAdmitYear, ColAdmitTerm, ColAdmitType,
	ColMajor1, ColMajor1Desc, ColMajor2, ColMajor2Desc, ColMajor3, ColMajor3Desc,
	ColMinor1, ColMinor2, ColMinor3, ColConcentration1, ColConcentration2, ColConcentration3,
	ColClass, ColCity, ColState, ColCountry, ColPostalCode, ColRace, ColSex, ColFirstGen,
	ColGPACumulative, ColHSGPA, ColSATMath, ColSATTotal, ColACTScore, ColMathPlacement,
	ColHSName, ColHSCity, ColHSState, ColHSCEEB, ColLeaveDate, ColLeaveReason,
	ColHonors, ColCompass, ColAustin, ColAthlete,
}

// EnrollmentColumns lists every enrollment column in export order.
var EnrollmentColumns = []string{
	ColUniqueID, ColCourseTerm, ColTermCode, ColCourseSection, ColCourseYear, ColCourseNumber,
	ColCourseGrade, ColCourseTitle, ColProgramLevel, ColSubprogramCode, ColSubprogramDesc,
}

// Columns that make up a record's key or a NOT NULL field are required
// whatever the deployment configures.
var (
	studentKeyColumns    = []string{ColUniqueID}
	enrollmentKeyColumns = []string{ColUniqueID, ColCourseTerm, ColCourseNumber, ColCourseGrade, ColCourseTitle}
)

// columnSet resolves column positions once per table.
type columnSet struct {
	table    *tabular.Table
	pos      map[string]int
	required map[string]bool
	header   []Diagnostic
}

func newColumnSet(table *tabular.Table, known, structural, configured []string) *columnSet {
	cs := &columnSet{
		table:    table,
		pos:      make(map[string]int, len(known)),
		required: make(map[string]bool, len(structural)+len(configured)),
	}
	for _, name := range append(append([]string{}, structural...), configured...) {
		cs.required[canonical(known, name)] = true
	}
	for _, name := range known {
		if idx, ok := table.Column(name); ok {
			cs.pos[name] = idx
		}
	}

	for _, name := range known {
		if !cs.required[name] {
			continue
		}
		if _, ok := cs.pos[name]; ok {
			continue
		}
		msg := fmt.Sprintf("missing column %s", name)
		if guess := closestHeader(table, known, name); guess != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", guess)
		}
		cs.header = append(cs.header, Diagnostic{
			Table:   table.Name,
			Line:    1,
			Column:  name,
			Message: msg,
			Kind:    KindHeader,
		})
	}
	return cs
}

// canonical maps a configured column spelling onto the known name.
func canonical(known []string, name string) string {
	key := tabular.HeaderKey(name)
	for _, k := range known {
		if tabular.HeaderKey(k) == key {
			return k
		}
	}
	return name
}

// closestHeader suggests an unrecognised header that is a plausible typo of
// want.
func closestHeader(table *tabular.Table, known []string, want string) string {
	knownKeys := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownKeys[tabular.HeaderKey(k)] = struct{}{}
	}

	target := tabular.HeaderKey(want)
	best, bestDist := "", 4
	for _, h := range table.Header {
		key := tabular.HeaderKey(h)
		if _, ok := knownKeys[key]; ok || key == "" {
			continue
		}
		if d := levenshtein.ComputeDistance(target, key); d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}

func (cs *columnSet) cell(row tabular.Row, name string) tabular.Cell {
	idx, ok := cs.pos[name]
	if !ok {
		return tabular.Cell{}
	}
	return cs.table.Cell(row, idx)
}

// rowDecoder decodes one row, collecting every failure instead of stopping.
type rowDecoder struct {
	cols  *columnSet
	rules *Rules
	row   tabular.Row
	diags []Diagnostic
}

func (d *rowDecoder) fail(name string, cell tabular.Cell, kind Kind, ferr *FieldError) {
	col := cell.Col
	if col == 0 {
		if idx, ok := d.cols.pos[name]; ok {
			col = idx + 1
		}
	}
	d.diags = append(d.diags, Diagnostic{
		Table:   d.cols.table.Name,
		Line:    d.row.Line,
		Col:     col,
		Column:  name,
		Message: ferr.Message,
		Kind:    kind,
	})
}

// take returns the cell for name, recording a diagnostic when a required
// cell is absent.
func (d *rowDecoder) take(name string) tabular.Cell {
	cell := d.cols.cell(d.row, name)
	if d.cols.required[name] {
		if ferr := d.rules.Required(cell, name); ferr != nil {
			d.fail(name, cell, KindField, ferr)
		}
	}
	return cell
}

func (d *rowDecoder) check(name string, cell tabular.Cell, ferr *FieldError) {
	if ferr != nil {
		d.fail(name, cell, KindField, ferr)
	}
}

func (d *rowDecoder) text(name string) null.String {
	return d.rules.Text(d.take(name))
}
