package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iload-dev/iload-api/internal/models"
)

const conflictColumns = `id, schedule_a_id, schedule_b_id, conflict_type, description, recommendation, status, created_at, updated_at`

// ConflictRepository provides persistence for detected conflicts.
type ConflictRepository struct {
	db *sqlx.DB
}

// NewConflictRepository creates a new conflict repository.
func NewConflictRepository(db *sqlx.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

// List returns conflicts with optional filtering and pagination, newest first.
func (r *ConflictRepository) List(ctx context.Context, filter models.ConflictFilter) ([]models.Conflict, int, error) {
	base := "FROM conflicts WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("conflict_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d", conflictColumns, base, size, offset)
	var conflicts []models.Conflict
	if err := r.db.SelectContext(ctx, &conflicts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list conflicts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count conflicts: %w", err)
	}

	return conflicts, total, nil
}

// ListForTerm returns conflicts whose schedules belong to the term, plus
// records orphaned on both sides so a full pass can retire them.
func (r *ConflictRepository) ListForTerm(ctx context.Context, schoolYear, semester string) ([]models.Conflict, error) {
	const query = `SELECT c.id, c.schedule_a_id, c.schedule_b_id, c.conflict_type, c.description, c.recommendation, c.status, c.created_at, c.updated_at
FROM conflicts c
LEFT JOIN schedules sa ON sa.id = c.schedule_a_id
LEFT JOIN schedules sb ON sb.id = c.schedule_b_id
WHERE (sa.school_year = $1 AND sa.semester = $2)
   OR (sb.school_year = $1 AND sb.semester = $2)
   OR (sa.id IS NULL AND sb.id IS NULL)`
	var conflicts []models.Conflict
	if err := r.db.SelectContext(ctx, &conflicts, query, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("list conflicts for term: %w", err)
	}
	return conflicts, nil
}

// ListByScheduleIDs returns conflicts touching any of the given schedules.
func (r *ConflictRepository) ListByScheduleIDs(ctx context.Context, ids []string) ([]models.Conflict, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM conflicts WHERE schedule_a_id IN (?) OR schedule_b_id IN (?)", conflictColumns), ids, ids)
	if err != nil {
		return nil, fmt.Errorf("build conflicts-by-schedule query: %w", err)
	}
	query = r.db.Rebind(query)
	var conflicts []models.Conflict
	if err := r.db.SelectContext(ctx, &conflicts, query, args...); err != nil {
		return nil, fmt.Errorf("list conflicts by schedule ids: %w", err)
	}
	return conflicts, nil
}

// FindByID loads a conflict by id.
func (r *ConflictRepository) FindByID(ctx context.Context, id string) (*models.Conflict, error) {
	query := fmt.Sprintf("SELECT %s FROM conflicts WHERE id = $1", conflictColumns)
	var conflict models.Conflict
	if err := r.db.GetContext(ctx, &conflict, query, id); err != nil {
		return nil, err
	}
	return &conflict, nil
}

// UpsertBatch inserts detected conflicts keyed by (conflict_type, pair).
// Re-detected rows refresh description and recommendation only, so a Resolved
// status always survives a rerun.
func (r *ConflictRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, conflicts []models.Conflict) error {
	if exec == nil {
		exec = r.db
	}
	now := time.Now().UTC()
	const query = `INSERT INTO conflicts (id, schedule_a_id, schedule_b_id, conflict_type, description, recommendation, status, created_at, updated_at)
VALUES (:id, :schedule_a_id, :schedule_b_id, :conflict_type, :description, :recommendation, :status, :created_at, :updated_at)
ON CONFLICT (conflict_type, schedule_a_id, schedule_b_id)
DO UPDATE SET description = EXCLUDED.description, recommendation = EXCLUDED.recommendation, updated_at = EXCLUDED.updated_at`

	for i := range conflicts {
		payload := conflicts[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.Status == "" {
			payload.Status = models.ConflictStatusPending
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, exec, query, &payload); err != nil {
			return fmt.Errorf("upsert conflict %s/%s: %w", payload.ScheduleAID, payload.ScheduleBID, err)
		}
		conflicts[i] = payload
	}
	return nil
}

// DeleteByIDs removes conflict records no longer backed by an overlap.
func (r *ConflictRepository) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if exec == nil {
		exec = r.db
	}
	query, args, err := sqlx.In("DELETE FROM conflicts WHERE id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("build conflict delete query: %w", err)
	}
	query = exec.Rebind(query)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete conflicts: %w", err)
	}
	return nil
}

// UpdateStatus sets the resolution status of one conflict.
func (r *ConflictRepository) UpdateStatus(ctx context.Context, id string, status models.ConflictStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE conflicts SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update conflict status: %w", err)
	}
	return nil
}
