package models

import (
	"fmt"
	"time"
)

// ConflictType labels the scheduling dimension two entries collide on.
type ConflictType string

const (
	ConflictTypeRoom       ConflictType = "Room Double Booking"
	ConflictTypeInstructor ConflictType = "Instructor Double Booking"
)

// ConflictStatus tracks human resolution of a detected conflict.
type ConflictStatus string

const (
	ConflictStatusPending  ConflictStatus = "Pending"
	ConflictStatusResolved ConflictStatus = "Resolved"
)

// Conflict records one colliding pair of schedules. The pair is stored in
// normalized order (ScheduleAID < ScheduleBID) so a pair has exactly one row
// per conflict type no matter which entry was inserted first.
type Conflict struct {
	ID             string         `db:"id" json:"id"`
	ScheduleAID    string         `db:"schedule_a_id" json:"schedule_a_id"`
	ScheduleBID    string         `db:"schedule_b_id" json:"schedule_b_id"`
	ConflictType   ConflictType   `db:"conflict_type" json:"conflict_type"`
	Description    string         `db:"description" json:"description"`
	Recommendation string         `db:"recommendation" json:"recommendation"`
	Status         ConflictStatus `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// NormalizePair orders two schedule ids into the canonical (a, b) storage
// order.
func NormalizePair(x, y string) (string, string) {
	if x <= y {
		return x, y
	}
	return y, x
}

// PairKey returns the identity a conflict is upserted by.
func (c Conflict) PairKey() string {
	a, b := NormalizePair(c.ScheduleAID, c.ScheduleBID)
	return ConflictKey(c.ConflictType, a, b)
}

// ConflictKey builds the normalized (type, pair) identity string.
func ConflictKey(t ConflictType, a, b string) string {
	return fmt.Sprintf("%s|%s|%s", t, a, b)
}

// ConflictFilter describes query params for listing conflicts.
type ConflictFilter struct {
	Status   ConflictStatus
	Type     ConflictType
	Page     int
	PageSize int
}

// DetectionReport summarises one detection pass over a term.
type DetectionReport struct {
	SchoolYear     string        `json:"school_year"`
	Semester       string        `json:"semester"`
	ScannedEntries int           `json:"scanned_entries"`
	Detected       int           `json:"detected"`
	Inserted       int           `json:"inserted"`
	Preserved      int           `json:"preserved"`
	Removed        int           `json:"removed"`
	Warnings       []string      `json:"warnings,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	RanAt          time.Time     `json:"ran_at"`
}
