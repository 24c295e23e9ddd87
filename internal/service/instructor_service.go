package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/internal/models"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
)

type instructorRepository interface {
	List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error)
	FindByID(ctx context.Context, id string) (*models.Instructor, error)
	Create(ctx context.Context, instructor *models.Instructor) error
	Update(ctx context.Context, instructor *models.Instructor) error
	Delete(ctx context.Context, id string) error
}

// InstructorInput is the create/update payload for instructors.
type InstructorInput struct {
	Name  string  `json:"name" validate:"required,min=2,max=120"`
	Email string  `json:"email" validate:"required,email"`
	Image *string `json:"image" validate:"omitempty,url"`
}

// InstructorService manages the instructor catalog.
type InstructorService struct {
	repo     instructorRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewInstructorService wires the instructor service.
func NewInstructorService(repo instructorRepository, logger *zap.Logger) *InstructorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorService{repo: repo, validate: validator.New(), logger: logger}
}

// List returns instructors matching the filter.
func (s *InstructorService) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one instructor.
func (s *InstructorService) Get(ctx context.Context, id string) (*models.Instructor, error) {
	instructor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// Create stores a new instructor.
func (s *InstructorService) Create(ctx context.Context, input InstructorInput) (*models.Instructor, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	instructor := &models.Instructor{Name: input.Name, Email: input.Email, Image: input.Image}
	if err := s.repo.Create(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	return instructor, nil
}

// Update replaces an instructor's editable fields.
func (s *InstructorService) Update(ctx context.Context, id string, input InstructorInput) (*models.Instructor, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	instructor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	instructor.Name = input.Name
	instructor.Email = input.Email
	instructor.Image = input.Image
	if err := s.repo.Update(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
	}
	return instructor, nil
}

// Delete removes an instructor.
func (s *InstructorService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete instructor")
	}
	return nil
}
