package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iload-dev/iload-api/internal/models"
	"github.com/iload-dev/iload-api/internal/service"
)

type fakeGeneratorRepo struct {
	term    []models.ScheduleDetail
	created []models.Schedule
}

func (f *fakeGeneratorRepo) ListDetailedForTerm(context.Context, string, string) ([]models.ScheduleDetail, error) {
	return f.term, nil
}

func (f *fakeGeneratorRepo) Create(_ context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	f.created = append(f.created, *schedule)
	return nil
}

func newTestGeneratorHandler(repo *fakeGeneratorRepo) *ScheduleGeneratorHandler {
	svc := service.NewScheduleGeneratorService(repo, nil, nil, service.ScheduleGeneratorConfig{})
	return NewScheduleGeneratorHandler(svc)
}

func TestGeneratorHandlerGenerateAndSave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeGeneratorRepo{}
	handler := newTestGeneratorHandler(repo)

	body, err := json.Marshal(service.GenerateScheduleInput{
		SchoolYear: "2025-2026",
		Semester:   "1st Semester",
		Requests: []service.GenerateClassRequest{
			{SubjectID: uuid.NewString(), InstructorID: uuid.NewString(), RoomIDs: []string{uuid.NewString()}},
		},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules/generate", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Generate(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data service.ScheduleProposal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.ID)
	require.Len(t, envelope.Data.Entries, 1)

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules/proposals/"+envelope.Data.ID+"/save", nil)
	c.Params = gin.Params{{Key: "id", Value: envelope.Data.ID}}

	handler.Save(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, repo.created, 1)
}

func TestGeneratorHandlerGenerateRejectsBadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestGeneratorHandler(&fakeGeneratorRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules/generate", bytes.NewReader([]byte("{")))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Generate(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeneratorHandlerProposalNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestGeneratorHandler(&fakeGeneratorRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/schedules/proposals/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Proposal(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
