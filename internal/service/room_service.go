package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/internal/models"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
)

type roomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
}

// RoomInput is the create/update payload for rooms.
type RoomInput struct {
	RoomNumber string   `json:"room_number" validate:"required,min=1,max=32"`
	RoomType   string   `json:"room_type" validate:"required,oneof=Lecture Laboratory"`
	Image      *string  `json:"image" validate:"omitempty,url"`
	Programs   []string `json:"programs" validate:"dive,min=1"`
}

// RoomService manages the room catalog, including program assignments.
type RoomService struct {
	repo     roomRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRoomService wires the room service.
func NewRoomService(repo roomRepository, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, validate: validator.New(), logger: logger}
}

// List returns rooms matching the filter.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one room with its programs.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create stores a new room and its program assignments.
func (s *RoomService) Create(ctx context.Context, input RoomInput) (*models.Room, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room := &models.Room{
		RoomNumber: input.RoomNumber,
		RoomType:   input.RoomType,
		Image:      input.Image,
		Programs:   input.Programs,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return room, nil
}

// Update replaces a room's editable fields, programs included.
func (s *RoomService) Update(ctx context.Context, id string, input RoomInput) (*models.Room, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	room.RoomNumber = input.RoomNumber
	room.RoomType = input.RoomType
	room.Image = input.Image
	room.Programs = input.Programs
	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	return room, nil
}

// Delete removes a room.
func (s *RoomService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	return nil
}
