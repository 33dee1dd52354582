// Package form validates raw form input and converts it into typed
// submission records.
package form

import (
	"strings"
	"time"
)

// Race is the self-reported race tag of a submission.
type Race string

// Supported race tags.
const (
	RaceBlack          Race = "black"
	RaceLatinx         Race = "latinx"
	RaceAsian          Race = "asian"
	RaceIndigenous     Race = "indigenous"
	RaceWhite          Race = "white"
	RaceOther          Race = "other"
	RacePreferNotToSay Race = "prefer-not-to-say"
)

// Gender is the self-reported gender tag of a submission.
type Gender string

// Supported gender tags.
const (
	GenderWoman          Gender = "woman"
	GenderMan            Gender = "man"
	GenderNonbinary      Gender = "nonbinary"
	GenderPreferNotToSay Gender = "prefer-not-to-say"
)

// Races lists every accepted race tag in display order.
var Races = []Race{
	RaceBlack, RaceLatinx, RaceAsian, RaceIndigenous, RaceWhite, RaceOther, RacePreferNotToSay,
}

// Genders lists every accepted gender tag in display order.
var Genders = []Gender{
	GenderWoman, GenderMan, GenderNonbinary, GenderPreferNotToSay,
}

// RawInput holds the six free-text form fields exactly as entered.
type RawInput struct {
	JobTitle      string `json:"jobTitle" yaml:"jobTitle" validate:"required"`
	MonthlyIncome string `json:"monthlyIncome" yaml:"monthlyIncome" validate:"required"`
	MonthlyRent   string `json:"monthlyRent" yaml:"monthlyRent" validate:"required"`
	Location      string `json:"location" yaml:"location" validate:"required"`
	Race          string `json:"race" yaml:"race" validate:"required"`
	Gender        string `json:"gender" yaml:"gender" validate:"required"`
}

// trimmed returns a copy with surrounding whitespace removed from every field.
func (r RawInput) trimmed() RawInput {
	return RawInput{
		JobTitle:      strings.TrimSpace(r.JobTitle),
		MonthlyIncome: strings.TrimSpace(r.MonthlyIncome),
		MonthlyRent:   strings.TrimSpace(r.MonthlyRent),
		Location:      strings.TrimSpace(r.Location),
		Race:          strings.TrimSpace(r.Race),
		Gender:        strings.TrimSpace(r.Gender),
	}
}

// Submission is the typed record produced by normalization. It is a value
// type; nothing mutates it after Normalize returns.
type Submission struct {
	JobTitle      string    `json:"jobTitle"`
	MonthlyIncome float64   `json:"monthlyIncome"`
	MonthlyRent   float64   `json:"monthlyRent"`
	Location      string    `json:"location"`
	Race          Race      `json:"race"`
	Gender        Gender    `json:"gender"`
	RentBurden    float64   `json:"rentBurden"`
	CreatedAt     time.Time `json:"createdAt"`
}
