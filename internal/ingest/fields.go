package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

// Custom validator tags.
const (
	tagClass          = "class_code"
	tagGrade          = "grade"
	tagSemester       = "semester"
	tagProgramLevel   = "program_level"
	tagSex            = "sex"
	tagRace           = "race"
	tagFlag           = "yn_flag"
	tagSubprogramDesc = "subprogram_desc"
)

// Sexes accepted in the Sex column.
var Sexes = []string{"M", "F", "X", "U"}

// Races is the IPEDS race/ethnicity set.
var Races = []string{
	"White",
	"Asian",
	"American Indian or Alaska Native",
	"Black or African American",
	"Hispanic or Latino",
	"Native Hawaiian or Other Pacific Islander",
	"Two or More Races",
	"Nonresident Alien",
	"Unknown",
}

var subprogramDescPattern = regexp.MustCompile(`^(Day|Graduate) - .+`)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"1/2/06",
	"02.01.2006",
	"2.1.2006",
}

// Bounds holds the institution-configured score ranges.
type Bounds struct {
	SATMathMin       int
	SATMathMax       int
	SATTotalMin      int
	SATTotalMax      int
	ACTMin           int
	ACTMax           int
	MathPlacementMax int
}

// BoundsFromConfig copies the score ranges out of the ingestion config.
func BoundsFromConfig(cfg config.IngestionConfig) Bounds {
	return Bounds{
		SATMathMin:       cfg.SATMathMin,
		SATMathMax:       cfg.SATMathMax,
		SATTotalMin:      cfg.SATTotalMin,
		SATTotalMax:      cfg.SATTotalMax,
		ACTMin:           cfg.ACTMin,
		ACTMax:           cfg.ACTMax,
		MathPlacementMax: cfg.MathPlacementMax,
	}
}

// Context carries the per-invocation inputs of the temporal and range rules.
type Context struct {
	Now    time.Time
	Bounds Bounds
}

// FieldError is a single failed rule on a single cell.
type FieldError struct {
	Message string
}

func (e *FieldError) Error() string { return e.Message }

func fieldErrorf(format string, args ...interface{}) *FieldError {
	return &FieldError{Message: fmt.Sprintf(format, args...)}
}

// Rules evaluates cell values. It is stateless apart from the validator
// engine and safe for concurrent use.
type Rules struct {
	validate *validator.Validate
}

// NewRules registers the enum tags on validate (a fresh engine when nil).
func NewRules(validate *validator.Validate) *Rules {
	if validate == nil {
		validate = validator.New()
	}
	_ = validate.RegisterValidation(tagClass, func(fl validator.FieldLevel) bool {
		_, ok := models.ClassCodes[fl.Field().String()]
		return ok
	})
	_ = validate.RegisterValidation(tagGrade, func(fl validator.FieldLevel) bool {
		return gradeOf(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation(tagSemester, oneOf(models.Semesters))
	_ = validate.RegisterValidation(tagProgramLevel, oneOf(models.ProgramLevels))
	_ = validate.RegisterValidation(tagSex, oneOf(Sexes))
	_ = validate.RegisterValidation(tagRace, oneOf(Races))
	_ = validate.RegisterValidation(tagFlag, func(fl validator.FieldLevel) bool {
		v := strings.ToUpper(fl.Field().String())
		return v == "Y" || v == "N"
	})
	_ = validate.RegisterValidation(tagSubprogramDesc, func(fl validator.FieldLevel) bool {
		return subprogramDescPattern.MatchString(fl.Field().String())
	})
	return &Rules{validate: validate}
}

func oneOf(allowed []string) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}

func gradeOf(v string) models.Grade {
	for _, g := range models.Grades {
		if string(g) == v {
			return g
		}
	}
	return ""
}

// Required fails when the cell is absent.
func (r *Rules) Required(cell tabular.Cell, column string) *FieldError {
	if cell.Present {
		return nil
	}
	return fieldErrorf("missing %s", column)
}

// Text returns the raw value of an optional free-text cell.
func (r *Rules) Text(cell tabular.Cell) null.String {
	return null.NewString(cell.Value, cell.Present)
}

// Enum checks membership through a registered tag. Values are compared
// exactly; nothing is coerced.
func (r *Rules) Enum(cell tabular.Cell, column, tag string, allowed []string) (null.String, *FieldError) {
	if !cell.Present {
		return null.String{}, nil
	}
	if err := r.validate.Var(cell.Value, tag); err != nil {
		return null.String{}, invalidChoice(column, cell.Value, allowed)
	}
	return null.StringFrom(cell.Value), nil
}

// Class maps FR/SO/JR/SR onto the stored class standing.
func (r *Rules) Class(cell tabular.Cell, column string) (null.String, *FieldError) {
	code, ferr := r.Enum(cell, column, tagClass, []string{"FR", "SO", "JR", "SR"})
	if ferr != nil || !code.Valid {
		return null.String{}, ferr
	}
	return null.StringFrom(string(models.ClassCodes[code.String])), nil
}

// Grade validates a final course grade.
func (r *Rules) Grade(cell tabular.Cell, column string) (models.Grade, *FieldError) {
	allowed := make([]string, len(models.Grades))
	for i, g := range models.Grades {
		allowed[i] = string(g)
	}
	v, ferr := r.Enum(cell, column, tagGrade, allowed)
	if ferr != nil || !v.Valid {
		return "", ferr
	}
	return gradeOf(v.String), nil
}

// Flag converts a Y/N token to a boolean. Matching ignores case.
func (r *Rules) Flag(cell tabular.Cell, column string) (null.Bool, *FieldError) {
	if !cell.Present {
		return null.Bool{}, nil
	}
	if err := r.validate.Var(cell.Value, tagFlag); err != nil {
		return null.Bool{}, invalidChoice(column, cell.Value, []string{"Y", "N"})
	}
	return null.BoolFrom(strings.EqualFold(cell.Value, "Y")), nil
}

// GPA parses a grade point average in [0, 4].
func (r *Rules) GPA(cell tabular.Cell, column string) (null.Float64, *FieldError) {
	if !cell.Present {
		return null.Float64{}, nil
	}
	v, err := strconv.ParseFloat(cell.Value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float64{}, fieldErrorf("invalid %s %q (must be a number)", column, cell.Value)
	}
	if verr := r.validate.Var(v, "gte=0,lte=4"); verr != nil {
		return null.Float64{}, fieldErrorf("%s %s out of range [0, 4]", column, cell.Value)
	}
	return null.Float64From(v), nil
}

// IntRange parses a whole number within [min, max].
func (r *Rules) IntRange(cell tabular.Cell, column string, min, max int) (null.Int, *FieldError) {
	if !cell.Present {
		return null.Int{}, nil
	}
	v, ok := parseWhole(cell.Value)
	if !ok {
		return null.Int{}, fieldErrorf("invalid %s %q (must be a whole number)", column, cell.Value)
	}
	if err := r.validate.Var(v, fmt.Sprintf("gte=%d,lte=%d", min, max)); err != nil {
		return null.Int{}, fieldErrorf("%s %d out of range [%d, %d]", column, v, min, max)
	}
	return null.IntFrom(v), nil
}

// NonNegative parses a whole number >= 0, bounded by max when max > 0.
func (r *Rules) NonNegative(cell tabular.Cell, column string, max int) (null.Int, *FieldError) {
	if max > 0 {
		return r.IntRange(cell, column, 0, max)
	}
	if !cell.Present {
		return null.Int{}, nil
	}
	v, ok := parseWhole(cell.Value)
	if !ok {
		return null.Int{}, fieldErrorf("invalid %s %q (must be a whole number)", column, cell.Value)
	}
	if v < 0 {
		return null.Int{}, fieldErrorf("%s %d must not be negative", column, v)
	}
	return null.IntFrom(v), nil
}

// Year parses a four digit year that is not after ctx.Now.
func (r *Rules) Year(ctx Context, cell tabular.Cell, column string) (null.Int, *FieldError) {
	if !cell.Present {
		return null.Int{}, nil
	}
	v, ok := parseWhole(cell.Value)
	if !ok || v < 1000 || v > 9999 {
		return null.Int{}, fieldErrorf("invalid %s %q (must be a four digit year)", column, cell.Value)
	}
	if v > ctx.Now.Year() {
		return null.Int{}, fieldErrorf("%s %d is in the future", column, v)
	}
	return null.IntFrom(v), nil
}

// Date parses a calendar date that is not after the day of ctx.Now. Dates
// are read in ctx.Now's location and compared as calendar days. Excel
// serial numbers are accepted for cells exported without a date format,
// but only from minSerialDate on so that a bare year is never one.
func (r *Rules) Date(ctx Context, cell tabular.Cell, column string) (null.Time, *FieldError) {
	if !cell.Present {
		return null.Time{}, nil
	}
	loc := ctx.Now.Location()
	t, ok := parseDate(cell.Value, loc)
	if !ok {
		return null.Time{}, fieldErrorf("invalid %s %q (must be a date such as 2006-01-02)", column, cell.Value)
	}
	t = startOfDay(t, loc)
	if t.After(startOfDay(ctx.Now, loc)) {
		return null.Time{}, fieldErrorf("%s %s is in the future", column, t.Format("2006-01-02"))
	}
	return null.TimeFrom(t), nil
}

// Term splits a combined "<semester> <year>" value such as "FA 2022".
func (r *Rules) Term(ctx Context, cell tabular.Cell, column string) (string, int, *FieldError) {
	if !cell.Present {
		return "", 0, nil
	}
	parts := strings.Fields(cell.Value)
	if len(parts) != 2 {
		return "", 0, fieldErrorf("invalid %s %q (expected \"<semester> <year>\", e.g. \"FA 2022\")", column, cell.Value)
	}
	semester, ferr := r.Enum(tabular.Cell{Value: parts[0], Present: true}, column+" semester", tagSemester, models.Semesters)
	if ferr != nil {
		return "", 0, ferr
	}
	year, ferr := r.Year(ctx, tabular.Cell{Value: parts[1], Present: true}, column+" year")
	if ferr != nil {
		return "", 0, ferr
	}
	return semester.String, int(year.Int), nil
}

// CourseNumber checks the 7 to 9 character course code.
func (r *Rules) CourseNumber(cell tabular.Cell, column string) (string, *FieldError) {
	if !cell.Present {
		return "", nil
	}
	if err := r.validate.Var(cell.Value, "min=7,max=9"); err != nil {
		return "", fieldErrorf("invalid %s %q (length must be between 7 and 9)", column, cell.Value)
	}
	return cell.Value, nil
}

// SubprogramDesc requires the "Day - ..." or "Graduate - ..." form.
func (r *Rules) SubprogramDesc(cell tabular.Cell, column string) (null.String, *FieldError) {
	if !cell.Present {
		return null.String{}, nil
	}
	if err := r.validate.Var(cell.Value, tagSubprogramDesc); err != nil {
		return null.String{}, fieldErrorf("invalid %s %q (must start with \"Day - \" or \"Graduate - \")", column, cell.Value)
	}
	return null.StringFrom(cell.Value), nil
}

func invalidChoice(column, value string, allowed []string) *FieldError {
	return fieldErrorf("invalid %s %q (must be one of %s)", column, value, strings.Join(allowed, ", "))
}

// parseWhole accepts "700" as well as spreadsheet renderings like "700.0".
func parseWhole(raw string) (int, bool) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// Serials below 10000 (1927-05-18) collide with years and small counts.
const (
	minSerialDate = 10000
	maxSerialDate = 2958465
)

func parseDate(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial < minSerialDate || serial > maxSerialDate {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), true
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
