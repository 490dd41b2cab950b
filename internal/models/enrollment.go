package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Grade is a final course grade.
type Grade string

const (
	GradeA          Grade = "A"
	GradeAMinus     Grade = "A-"
	GradeBPlus      Grade = "B+"
	GradeB          Grade = "B"
	GradeBMinus     Grade = "B-"
	GradeCPlus      Grade = "C+"
	GradeC          Grade = "C"
	GradeCMinus     Grade = "C-"
	GradeDPlus      Grade = "D+"
	GradeD          Grade = "D"
	GradeDMinus     Grade = "D-"
	GradeF          Grade = "F"
	GradeWithdrawal Grade = "W"
	GradePass       Grade = "P"
	GradeInProgress Grade = "IP"
)

// Grades lists every accepted grade in report order.
var Grades = []Grade{
	GradeA, GradeAMinus, GradeBPlus, GradeB, GradeBMinus, GradeCPlus, GradeC, GradeCMinus,
	GradeDPlus, GradeD, GradeDMinus, GradeF, GradeWithdrawal, GradePass, GradeInProgress,
}

// DWFGrades are the grades counted by the DWF rate.
var DWFGrades = []Grade{GradeDPlus, GradeD, GradeDMinus, GradeF, GradeWithdrawal}

// ProgramLevels accepted on enrollment rows.
var ProgramLevels = []string{"UNDG", "GRAD"}

// Enrollment links a student to a course offering with a final grade.
type Enrollment struct {
	ID             string      `db:"id" json:"id"`
	StudentID      string      `db:"student_id" json:"student_id"`
	CourseID       string      `db:"course_id" json:"course_id"`
	Grade          Grade       `db:"grade" json:"grade"`
	ProgramLevel   null.String `db:"program_level" json:"program_level"`
	SubprogramCode null.String `db:"subprogram_code" json:"subprogram_code"`
	SubprogramDesc null.String `db:"subprogram_desc" json:"subprogram_desc"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}
