package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iload-dev/iload-api/internal/models"
)

// DashboardRepository aggregates entity counters for the admin dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository creates a new dashboard repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Stats runs the counter queries in one round trip.
func (r *DashboardRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM instructors) AS total_instructors,
	(SELECT COUNT(*) FROM rooms) AS total_rooms,
	(SELECT COUNT(*) FROM subjects) AS total_subjects,
	(SELECT COUNT(*) FROM schedules) AS total_schedules,
	(SELECT COUNT(*) FROM conflicts WHERE status = 'Pending') AS pending_conflicts,
	(SELECT COUNT(*) FROM conflicts WHERE status = 'Resolved') AS resolved_conflicts,
	(SELECT COUNT(*) FROM room_feedback WHERE satisfied) AS satisfied_feedback,
	(SELECT COUNT(*) FROM room_feedback WHERE NOT satisfied) AS unsatisfied_feedback`

	row := struct {
		TotalInstructors    int `db:"total_instructors"`
		TotalRooms          int `db:"total_rooms"`
		TotalSubjects       int `db:"total_subjects"`
		TotalSchedules      int `db:"total_schedules"`
		PendingConflicts    int `db:"pending_conflicts"`
		ResolvedConflicts   int `db:"resolved_conflicts"`
		SatisfiedFeedback   int `db:"satisfied_feedback"`
		UnsatisfiedFeedback int `db:"unsatisfied_feedback"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("load dashboard stats: %w", err)
	}

	return &models.DashboardStats{
		TotalInstructors:    row.TotalInstructors,
		TotalRooms:          row.TotalRooms,
		TotalSubjects:       row.TotalSubjects,
		TotalSchedules:      row.TotalSchedules,
		PendingConflicts:    row.PendingConflicts,
		ResolvedConflicts:   row.ResolvedConflicts,
		SatisfiedFeedback:   row.SatisfiedFeedback,
		UnsatisfiedFeedback: row.UnsatisfiedFeedback,
	}, nil
}
