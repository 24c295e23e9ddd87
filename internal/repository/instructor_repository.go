package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iload-dev/iload-api/internal/models"
)

// InstructorRepository provides persistence for instructors.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository creates a new instructor repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// List returns instructors with optional search and pagination.
func (r *InstructorRepository) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error) {
	base := "FROM instructors WHERE 1=1"
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+2)
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
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

	query := fmt.Sprintf("SELECT id, name, email, image, created_at, updated_at %s ORDER BY name ASC LIMIT %d OFFSET %d", base, size, offset)
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructors: %w", err)
	}

	return instructors, total, nil
}

// FindByID loads an instructor by id.
func (r *InstructorRepository) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	const query = `SELECT id, name, email, image, created_at, updated_at FROM instructors WHERE id = $1`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, id); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// Create stores a new instructor.
func (r *InstructorRepository) Create(ctx context.Context, instructor *models.Instructor) error {
	if instructor.ID == "" {
		instructor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instructor.CreatedAt.IsZero() {
		instructor.CreatedAt = now
	}
	instructor.UpdatedAt = now

	const query = `INSERT INTO instructors (id, name, email, image, created_at, updated_at) VALUES (:id, :name, :email, :image, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("create instructor: %w", err)
	}
	return nil
}

// Update modifies an instructor record.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	instructor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructors SET name = :name, email = :email, image = :image, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("update instructor: %w", err)
	}
	return nil
}

// Delete removes an instructor by id.
func (r *InstructorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM instructors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete instructor: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
