package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iload-dev/iload-api/internal/models"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
)

type generatorRepoStub struct {
	term    []models.ScheduleDetail
	created []models.Schedule
}

func (r *generatorRepoStub) ListDetailedForTerm(ctx context.Context, schoolYear, semester string) ([]models.ScheduleDetail, error) {
	return r.term, nil
}

func (r *generatorRepoStub) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	r.created = append(r.created, *schedule)
	return nil
}

func newTestGenerator(repo *generatorRepoStub, trigger *scanTriggerStub) *ScheduleGeneratorService {
	return NewScheduleGeneratorService(repo, trigger, nil, ScheduleGeneratorConfig{
		ProposalTTL: time.Minute,
		SlotStep:    30 * time.Minute,
	})
}

func generationInput(requests ...GenerateClassRequest) GenerateScheduleInput {
	return GenerateScheduleInput{
		SchoolYear: "2025-2026",
		Semester:   "1st Semester",
		Requests:   requests,
	}
}

func TestGenerateProducesConflictFreeTimetable(t *testing.T) {
	instructor := uuid.NewString()
	room := uuid.NewString()
	input := generationInput(
		GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: instructor, RoomIDs: []string{room}},
		GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: instructor, RoomIDs: []string{room}},
		GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: uuid.NewString(), RoomIDs: []string{room}},
	)

	svc := newTestGenerator(&generatorRepoStub{}, &scanTriggerStub{})
	proposal, err := svc.Generate(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, proposal.Entries, 3)
	assert.NotEmpty(t, proposal.ID)
	assert.Equal(t, "2025-2026", proposal.SchoolYear)

	// Feed the proposal back through the detection engine: a correct
	// assignment produces zero colliding pairs.
	details := make([]models.ScheduleDetail, 0, len(proposal.Entries))
	for _, e := range proposal.Entries {
		e.ID = uuid.NewString()
		details = append(details, models.ScheduleDetail{Schedule: e})
	}
	detected, warnings := NewConflictDetector(nil, nil).Detect(details)
	assert.Empty(t, detected)
	assert.Empty(t, warnings)

	cached, err := svc.Proposal(proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.ID, cached.ID)
}

func TestGenerateSchedulesAroundStoredEntries(t *testing.T) {
	instructor := uuid.NewString()
	room := uuid.NewString()

	// A 08:00-09:30 window leaves exactly one slot per day for this room.
	// Monday through Thursday are already taken, so Friday is the only
	// feasible placement.
	repo := &generatorRepoStub{}
	for _, day := range []string{"Monday", "Tuesday", "Wednesday", "Thursday"} {
		repo.term = append(repo.term, detailEntry("stored-"+day, room, uuid.NewString(), day, "08:00", "09:30"))
	}

	input := generationInput(GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: instructor, RoomIDs: []string{room}})
	input.StartTime = "08:00"
	input.EndTime = "09:30"

	svc := newTestGenerator(repo, &scanTriggerStub{})
	proposal, err := svc.Generate(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, proposal.Entries, 1)
	assert.Equal(t, "Friday", proposal.Entries[0].DayOfWeek)
	assert.Equal(t, "08:00", proposal.Entries[0].StartTime)
	assert.Equal(t, "09:30", proposal.Entries[0].EndTime)
}

func TestGenerateFailsWhenNoSlotIsFree(t *testing.T) {
	room := uuid.NewString()
	repo := &generatorRepoStub{}
	for _, day := range models.Weekdays {
		repo.term = append(repo.term, detailEntry("stored-"+day, room, uuid.NewString(), day, "08:00", "09:30"))
	}

	input := generationInput(GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: uuid.NewString(), RoomIDs: []string{room}})
	input.StartTime = "08:00"
	input.EndTime = "09:30"

	svc := newTestGenerator(repo, &scanTriggerStub{})
	_, err := svc.Generate(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGenerateFailsWhenRequestsCannotCoexist(t *testing.T) {
	// Six classes for one instructor, one usable slot per day: at most five
	// can be placed, so the search must report infeasibility.
	instructor := uuid.NewString()
	requests := make([]GenerateClassRequest, 0, 6)
	for i := 0; i < 6; i++ {
		requests = append(requests, GenerateClassRequest{
			SubjectID:    uuid.NewString(),
			InstructorID: instructor,
			RoomIDs:      []string{uuid.NewString()},
		})
	}
	input := generationInput(requests...)
	input.StartTime = "08:00"
	input.EndTime = "09:30"

	svc := newTestGenerator(&generatorRepoStub{}, &scanTriggerStub{})
	_, err := svc.Generate(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGenerateValidatesWindowAndPayload(t *testing.T) {
	svc := newTestGenerator(&generatorRepoStub{}, &scanTriggerStub{})

	_, err := svc.Generate(context.Background(), GenerateScheduleInput{SchoolYear: "2025-2026", Semester: "1st Semester"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	input := generationInput(GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: uuid.NewString(), RoomIDs: []string{uuid.NewString()}})
	input.StartTime = "19:00"
	input.EndTime = "07:00"
	_, err = svc.Generate(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	input = generationInput(GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: uuid.NewString(), RoomIDs: []string{uuid.NewString()}, DurationMinutes: 300})
	input.StartTime = "08:00"
	input.EndTime = "10:00"
	_, err = svc.Generate(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSaveProposalPersistsEntriesAndEnqueuesScans(t *testing.T) {
	repo := &generatorRepoStub{}
	trigger := &scanTriggerStub{}
	svc := newTestGenerator(repo, trigger)

	input := generationInput(
		GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: uuid.NewString(), RoomIDs: []string{uuid.NewString()}},
		GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: uuid.NewString(), RoomIDs: []string{uuid.NewString()}},
	)
	proposal, err := svc.Generate(context.Background(), input)
	require.NoError(t, err)

	saved, err := svc.Save(context.Background(), proposal.ID)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Len(t, repo.created, 2)
	assert.Len(t, trigger.scopes, 2)
	for _, s := range saved {
		assert.NotEmpty(t, s.ID)
		assert.False(t, s.Approved)
	}

	// A saved proposal is gone; saving twice would duplicate entries.
	_, err = svc.Save(context.Background(), proposal.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDiscardProposal(t *testing.T) {
	svc := newTestGenerator(&generatorRepoStub{}, &scanTriggerStub{})

	input := generationInput(GenerateClassRequest{SubjectID: uuid.NewString(), InstructorID: uuid.NewString(), RoomIDs: []string{uuid.NewString()}})
	proposal, err := svc.Generate(context.Background(), input)
	require.NoError(t, err)

	require.NoError(t, svc.Discard(proposal.ID))
	err = svc.Discard(proposal.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
