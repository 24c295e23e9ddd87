package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iload-dev/iload-api/internal/models"
)

const scheduleDetailColumns = `s.id, s.subject_id, s.instructor_id, s.room_id, s.day_of_week, s.start_time, s.end_time, s.semester, s.school_year, s.approved, s.created_at, s.updated_at, sub.code AS subject_code, sub.name AS subject_name, i.name AS instructor_name, r.room_number, r.room_type`

const scheduleDetailJoins = `FROM schedules s
JOIN subjects sub ON sub.id = s.subject_id
JOIN instructors i ON i.id = s.instructor_id
JOIN rooms r ON r.id = s.room_id`

// ScheduleRepository provides persistence for schedule entries.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns joined schedule rows with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	base := scheduleDetailJoins + " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("s.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("s.day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("s.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("s.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("s.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Approved != nil {
		conditions = append(conditions, fmt.Sprintf("s.approved = $%d", len(args)+1))
		args = append(args, *filter.Approved)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"day_of_week": "s.day_of_week",
		"start_time":  "s.start_time",
		"room_number": "r.room_number",
		"created_at":  "s.created_at",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "s.day_of_week"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, s.start_time ASC LIMIT %d OFFSET %d", scheduleDetailColumns, base, sortColumn, order, size, offset)
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// FindByID loads a schedule by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	const query = `SELECT id, subject_id, instructor_id, room_id, day_of_week, start_time, end_time, semester, school_year, approved, created_at, updated_at FROM schedules WHERE id = $1`
	var sched models.Schedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListDetailedForTerm returns every joined schedule row of one term, ordered
// for deterministic detection passes.
func (r *ScheduleRepository) ListDetailedForTerm(ctx context.Context, schoolYear, semester string) ([]models.ScheduleDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.school_year = $1 AND s.semester = $2 ORDER BY s.day_of_week ASC, s.start_time ASC, s.id ASC`, scheduleDetailColumns, scheduleDetailJoins)
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("list schedules for term: %w", err)
	}
	return schedules, nil
}

// ListDetailedForGroup returns the joined rows an incremental scan needs: the
// term's entries on one weekday that share the given room or instructor.
func (r *ScheduleRepository) ListDetailedForGroup(ctx context.Context, schoolYear, semester, dayOfWeek, roomID, instructorID string) ([]models.ScheduleDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.school_year = $1 AND s.semester = $2 AND s.day_of_week = $3 AND (s.room_id = $4 OR s.instructor_id = $5) ORDER BY s.start_time ASC, s.id ASC`, scheduleDetailColumns, scheduleDetailJoins)
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, schoolYear, semester, dayOfWeek, roomID, instructorID); err != nil {
		return nil, fmt.Errorf("list schedules for group: %w", err)
	}
	return schedules, nil
}

// Create stores a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO schedules (id, subject_id, instructor_id, room_id, day_of_week, start_time, end_time, semester, school_year, approved, created_at, updated_at) VALUES (:id, :subject_id, :instructor_id, :room_id, :day_of_week, :start_time, :end_time, :semester, :school_year, :approved, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update modifies a schedule record.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET subject_id = :subject_id, instructor_id = :instructor_id, room_id = :room_id, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, semester = :semester, school_year = :school_year, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule by id. Conflicts referencing it are retired by
// the next detection pass, which drops records no longer backed by an overlap.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetApproved flips the approval flag.
func (r *ScheduleRepository) SetApproved(ctx context.Context, id string, approved bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE schedules SET approved = $1, updated_at = $2 WHERE id = $3`, approved, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set schedule approval: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
