package models

import "time"

// Weekday values accepted for schedule entries. The institution only
// timetables Monday through Friday.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// IsWeekday reports whether day is one of the five supported weekdays.
func IsWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// Schedule represents a class meeting: a subject taught by an instructor in a
// room, on a weekday, within a time window, for a given term.
type Schedule struct {
	ID           string    `db:"id" json:"id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	RoomID       string    `db:"room_id" json:"room_id"`
	DayOfWeek    string    `db:"day_of_week" json:"day_of_week"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	Semester     string    `db:"semester" json:"semester"`
	SchoolYear   string    `db:"school_year" json:"school_year"`
	Approved     bool      `db:"approved" json:"approved"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleDetail is a schedule row joined with the names the conflict
// descriptions and timetable views need.
type ScheduleDetail struct {
	Schedule
	SubjectCode    string `db:"subject_code" json:"subject_code"`
	SubjectName    string `db:"subject_name" json:"subject_name"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	RoomNumber     string `db:"room_number" json:"room_number"`
	RoomType       string `db:"room_type" json:"room_type"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	SchoolYear   string
	Semester     string
	DayOfWeek    string
	RoomID       string
	InstructorID string
	SubjectID    string
	Approved     *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
