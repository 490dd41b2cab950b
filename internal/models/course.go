package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Course is a single offering of a course in a given term.
type Course struct {
	ID        string      `db:"id" json:"id"`
	CourseNum string      `db:"course_num" json:"course_num"`
	Semester  string      `db:"semester" json:"semester"`
	Year      int         `db:"year" json:"year"`
	Section   string      `db:"section" json:"section"`
	Title     string      `db:"title" json:"title"`
	TermCode  null.String `db:"term_code" json:"term_code"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// CourseKey is the natural key of an offering.
type CourseKey struct {
	CourseNum string
	Semester  string
	Year      int
	Section   string
	Title     string
}

// Key returns the natural key of c.
func (c Course) Key() CourseKey {
	return CourseKey{CourseNum: c.CourseNum, Semester: c.Semester, Year: c.Year, Section: c.Section, Title: c.Title}
}
