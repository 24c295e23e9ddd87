package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/internal/models"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
	SetApproved(ctx context.Context, id string, approved bool) error
}

type scanTrigger interface {
	EnqueueGroupScan(scope GroupScope) error
}

// CreateScheduleInput carries a new schedule entry.
type CreateScheduleInput struct {
	SubjectID    string `json:"subject_id" validate:"required,uuid4"`
	InstructorID string `json:"instructor_id" validate:"required,uuid4"`
	RoomID       string `json:"room_id" validate:"required,uuid4"`
	DayOfWeek    string `json:"day_of_week" validate:"required"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	Semester     string `json:"semester" validate:"required"`
	SchoolYear   string `json:"school_year" validate:"required"`
}

// UpdateScheduleInput carries changes to an existing entry. Nil fields are
// left untouched.
type UpdateScheduleInput struct {
	SubjectID    *string `json:"subject_id" validate:"omitempty,uuid4"`
	InstructorID *string `json:"instructor_id" validate:"omitempty,uuid4"`
	RoomID       *string `json:"room_id" validate:"omitempty,uuid4"`
	DayOfWeek    *string `json:"day_of_week"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
	Semester     *string `json:"semester"`
	SchoolYear   *string `json:"school_year"`
}

// ScheduleService manages schedule entries and keeps the conflict set fresh
// by enqueueing incremental scans after every mutation.
type ScheduleService struct {
	repo     scheduleRepository
	scans    scanTrigger
	validate *validator.Validate
	logger   *zap.Logger
}

// NewScheduleService wires the schedule service.
func NewScheduleService(repo scheduleRepository, scans scanTrigger, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		repo:     repo,
		scans:    scans,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns schedule entries joined with subject, instructor and room data.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one schedule entry.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// Create validates and stores a new schedule entry, then triggers an
// incremental conflict scan for the groups it joined.
func (s *ScheduleService) Create(ctx context.Context, input CreateScheduleInput) (*models.Schedule, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if err := validateTimeWindow(input.DayOfWeek, input.StartTime, input.EndTime); err != nil {
		return nil, err
	}

	schedule := &models.Schedule{
		SubjectID:    input.SubjectID,
		InstructorID: input.InstructorID,
		RoomID:       input.RoomID,
		DayOfWeek:    input.DayOfWeek,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		Semester:     input.Semester,
		SchoolYear:   input.SchoolYear,
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}

	s.triggerScan(scopeOf(schedule))
	return schedule, nil
}

// Update applies partial changes, then triggers scans for both the groups the
// entry left and the groups it joined.
func (s *ScheduleService) Update(ctx context.Context, id string, input UpdateScheduleInput) (*models.Schedule, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	before := scopeOf(schedule)

	if input.SubjectID != nil {
		schedule.SubjectID = *input.SubjectID
	}
	if input.InstructorID != nil {
		schedule.InstructorID = *input.InstructorID
	}
	if input.RoomID != nil {
		schedule.RoomID = *input.RoomID
	}
	if input.DayOfWeek != nil {
		schedule.DayOfWeek = *input.DayOfWeek
	}
	if input.StartTime != nil {
		schedule.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		schedule.EndTime = *input.EndTime
	}
	if input.Semester != nil {
		schedule.Semester = *input.Semester
	}
	if input.SchoolYear != nil {
		schedule.SchoolYear = *input.SchoolYear
	}
	if err := validateTimeWindow(schedule.DayOfWeek, schedule.StartTime, schedule.EndTime); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}

	s.triggerScan(before)
	after := scopeOf(schedule)
	if after != before {
		s.triggerScan(after)
	}
	return schedule, nil
}

// Delete removes an entry and rescans the groups it occupied so conflicts it
// caused are retired.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.triggerScan(scopeOf(schedule))
	return nil
}

// Approve flips the approval flag on an entry.
func (s *ScheduleService) Approve(ctx context.Context, id string, approved bool) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if err := s.repo.SetApproved(ctx, id, approved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule approval")
	}
	schedule.Approved = approved
	schedule.UpdatedAt = time.Now().UTC()
	return schedule, nil
}

func (s *ScheduleService) triggerScan(scope GroupScope) {
	if s.scans == nil {
		return
	}
	if err := s.scans.EnqueueGroupScan(scope); err != nil {
		s.logger.Warn("conflict scan not enqueued",
			zap.String("day", scope.DayOfWeek),
			zap.String("room_id", scope.RoomID),
			zap.String("instructor_id", scope.InstructorID),
			zap.Error(err),
		)
	}
}

func scopeOf(s *models.Schedule) GroupScope {
	return GroupScope{
		SchoolYear:   s.SchoolYear,
		Semester:     s.Semester,
		DayOfWeek:    s.DayOfWeek,
		RoomID:       s.RoomID,
		InstructorID: s.InstructorID,
	}
}

// validateTimeWindow enforces weekday and strictly increasing clock values.
func validateTimeWindow(day, startTime, endTime string) error {
	if !models.IsWeekday(day) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day_of_week must be one of %v", models.Weekdays))
	}
	start, err := parseClock(startTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be a valid HH:MM clock value")
	}
	end, err := parseClock(endTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be a valid HH:MM clock value")
	}
	if end <= start {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return nil
}
