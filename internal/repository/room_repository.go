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

// RoomRepository provides persistence for rooms and their program
// assignments (room_programs rows).
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a new room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms with optional filtering and pagination, programs loaded.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	base := "FROM rooms WHERE 1=1"
	var args []interface{}

	if filter.RoomType != "" {
		base += fmt.Sprintf(" AND room_type = $%d", len(args)+1)
		args = append(args, filter.RoomType)
	}
	if filter.Program != "" {
		base += fmt.Sprintf(" AND id IN (SELECT room_id FROM room_programs WHERE program = $%d)", len(args)+1)
		args = append(args, filter.Program)
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

	query := fmt.Sprintf("SELECT id, room_number, room_type, image, created_at, updated_at %s ORDER BY room_number ASC LIMIT %d OFFSET %d", base, size, offset)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}

	if err := r.attachPrograms(ctx, rooms); err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

// FindByID loads a room with its programs.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, room_number, room_type, image, created_at, updated_at FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	rooms := []models.Room{room}
	if err := r.attachPrograms(ctx, rooms); err != nil {
		return nil, err
	}
	return &rooms[0], nil
}

// Create stores a new room and its program assignments in one transaction.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create room: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO rooms (id, room_number, room_type, image, created_at, updated_at) VALUES (:id, :room_number, :room_type, :image, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, room); err != nil {
		err = fmt.Errorf("create room: %w", err)
		return err
	}
	if err = replacePrograms(ctx, tx, room.ID, room.Programs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit create room: %w", err)
		return err
	}
	return nil
}

// Update modifies a room and replaces its program assignments.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update room: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE rooms SET room_number = :room_number, room_type = :room_type, image = :image, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, room); err != nil {
		err = fmt.Errorf("update room: %w", err)
		return err
	}
	if err = replacePrograms(ctx, tx, room.ID, room.Programs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit update room: %w", err)
		return err
	}
	return nil
}

// Delete removes a room by id. room_programs rows cascade.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *RoomRepository) attachPrograms(ctx context.Context, rooms []models.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}

	query, args, err := sqlx.In(`SELECT room_id, program FROM room_programs WHERE room_id IN (?) ORDER BY program ASC`, ids)
	if err != nil {
		return fmt.Errorf("build room programs query: %w", err)
	}
	query = r.db.Rebind(query)

	rows := []struct {
		RoomID  string `db:"room_id"`
		Program string `db:"program"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("list room programs: %w", err)
	}

	byRoom := make(map[string][]string, len(rooms))
	for _, row := range rows {
		byRoom[row.RoomID] = append(byRoom[row.RoomID], row.Program)
	}
	for i := range rooms {
		rooms[i].Programs = byRoom[rooms[i].ID]
	}
	return nil
}

func replacePrograms(ctx context.Context, tx *sqlx.Tx, roomID string, programs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_programs WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("clear room programs: %w", err)
	}
	for _, program := range programs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO room_programs (room_id, program) VALUES ($1, $2)`, roomID, program); err != nil {
			return fmt.Errorf("insert room program: %w", err)
		}
	}
	return nil
}
