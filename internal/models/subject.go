package models

import "time"

// Subject represents a course offering for a year level / section.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	YearLevel string    `db:"year_level" json:"year_level"`
	Section   string    `db:"section" json:"section"`
	Course    string    `db:"course" json:"course"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter describes query params for listing subjects.
type SubjectFilter struct {
	Course    string
	YearLevel string
	Search    string
	Page      int
	PageSize  int
}
