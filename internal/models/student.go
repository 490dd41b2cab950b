package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// ClassStanding is the stored, spelled-out class year.
type ClassStanding string

const (
	ClassFreshman  ClassStanding = "Freshman"
	ClassSophomore ClassStanding = "Sophomore"
	ClassJunior    ClassStanding = "Junior"
	ClassSenior    ClassStanding = "Senior"
)

// ClassCodes maps the two-letter export codes onto ClassStanding.
var ClassCodes = map[string]ClassStanding{
	"FR": ClassFreshman,
	"SO": ClassSophomore,
	"JR": ClassJunior,
	"SR": ClassSenior,
}

// Semesters accepted for admit terms and course offerings.
var Semesters = []string{"FA", "SP", "SU", "WI"}

// Student is a learner keyed by the institution's Unique_ID. Every
// attribute other than the key is optional at the storage level; which ones
// an upload must carry is configured per deployment.
type Student struct {
	ID                 string        `db:"id" json:"id"`
	FirstName          null.String   `db:"first_name" json:"first_name"`
	LastName           null.String   `db:"last_name" json:"last_name"`
	AdmitYear          null.Int      `db:"admit_year" json:"admit_year"`
	AdmitTerm          null.String   `db:"admit_term" json:"admit_term"`
	AdmitType          null.String   `db:"admit_type" json:"admit_type"`
	Major1             null.String   `db:"major_1" json:"major_1"`
	Major1Desc         null.String   `db:"major_1_desc" json:"major_1_desc"`
	Major2             null.String   `db:"major_2" json:"major_2"`
	Major2Desc         null.String   `db:"major_2_desc" json:"major_2_desc"`
	Major3             null.String   `db:"major_3" json:"major_3"`
	Major3Desc         null.String   `db:"major_3_desc" json:"major_3_desc"`
	Minor1             null.String   `db:"minor_1" json:"minor_1"`
	Minor2             null.String   `db:"minor_2" json:"minor_2"`
	Minor3             null.String   `db:"minor_3" json:"minor_3"`
	Concentration1     null.String   `db:"concentration_1" json:"concentration_1"`
	Concentration2     null.String   `db:"concentration_2" json:"concentration_2"`
	Concentration3     null.String   `db:"concentration_3" json:"concentration_3"`
	ClassStanding      null.String   `db:"class_standing" json:"class_standing"`
	City               null.String   `db:"city" json:"city"`
	State              null.String   `db:"state" json:"state"`
	Country            null.String   `db:"country" json:"country"`
	PostalCode         null.String   `db:"postal_code" json:"postal_code"`
	RaceEthnicity      null.String   `db:"race_ethnicity" json:"race_ethnicity"`
	Sex                null.String   `db:"sex" json:"sex"`
	FirstGen           null.Bool     `db:"first_gen" json:"first_gen"`
	GPACumulative      null.Float64  `db:"gpa_cumulative" json:"gpa_cumulative"`
	HSGPA              null.Float64  `db:"hs_gpa" json:"hs_gpa"`
	SATMath            null.Int      `db:"sat_math" json:"sat_math"`
	SATTotal           null.Int      `db:"sat_total" json:"sat_total"`
	ACTScore           null.Int      `db:"act_score" json:"act_score"`
	MathPlacementScore null.Int      `db:"math_placement_score" json:"math_placement_score"`
	HSName             null.String   `db:"hs_name" json:"hs_name"`
	HSCity             null.String   `db:"hs_city" json:"hs_city"`
	HSState            null.String   `db:"hs_state" json:"hs_state"`
	HSCEEB             null.String   `db:"hs_ceeb" json:"hs_ceeb"`
	LeaveDate          null.Time     `db:"leave_date" json:"leave_date"`
	LeaveReason        null.String   `db:"leave_reason" json:"leave_reason"`
	Honors             null.Bool     `db:"honors" json:"honors"`
	Compass            null.Bool     `db:"compass" json:"compass"`
	Austin             null.Bool     `db:"austin" json:"austin"`
	Athlete            null.Bool     `db:"athlete" json:"athlete"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
}
