package models

import "time"

// Instructor represents a teaching staff member.
type Instructor struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Image     *string   `db:"image" json:"image,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InstructorFilter describes query params for listing instructors.
type InstructorFilter struct {
	Search   string
	Page     int
	PageSize int
}
