package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iload-dev/iload-api/internal/models"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
)

type scheduleReaderStub struct {
	term  []models.ScheduleDetail
	group []models.ScheduleDetail
}

func (s *scheduleReaderStub) ListDetailedForTerm(ctx context.Context, schoolYear, semester string) ([]models.ScheduleDetail, error) {
	return s.term, nil
}

func (s *scheduleReaderStub) ListDetailedForGroup(ctx context.Context, schoolYear, semester, dayOfWeek, roomID, instructorID string) ([]models.ScheduleDetail, error) {
	return s.group, nil
}

type conflictRepoStub struct {
	stored   []models.Conflict
	upserted []models.Conflict
	deleted  []string
	statuses map[string]models.ConflictStatus
}

func newConflictRepoStub(stored ...models.Conflict) *conflictRepoStub {
	return &conflictRepoStub{stored: stored, statuses: map[string]models.ConflictStatus{}}
}

func (r *conflictRepoStub) List(ctx context.Context, filter models.ConflictFilter) ([]models.Conflict, int, error) {
	return r.stored, len(r.stored), nil
}

func (r *conflictRepoStub) ListForTerm(ctx context.Context, schoolYear, semester string) ([]models.Conflict, error) {
	return r.stored, nil
}

func (r *conflictRepoStub) ListByScheduleIDs(ctx context.Context, ids []string) ([]models.Conflict, error) {
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	var out []models.Conflict
	for _, c := range r.stored {
		if set[c.ScheduleAID] || set[c.ScheduleBID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *conflictRepoStub) FindByID(ctx context.Context, id string) (*models.Conflict, error) {
	for i := range r.stored {
		if r.stored[i].ID == id {
			c := r.stored[i]
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *conflictRepoStub) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, conflicts []models.Conflict) error {
	r.upserted = append(r.upserted, conflicts...)
	return nil
}

func (r *conflictRepoStub) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	r.deleted = append(r.deleted, ids...)
	return nil
}

func (r *conflictRepoStub) UpdateStatus(ctx context.Context, id string, status models.ConflictStatus) error {
	r.statuses[id] = status
	return nil
}

func newTxProviderMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func newTestConflictService(t *testing.T, schedules *scheduleReaderStub, conflicts *conflictRepoStub) (*ConflictService, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := newTxProviderMock(t)
	svc := NewConflictService(schedules, conflicts, nil, db, NewCacheService(nil, nil, 0, nil, false), nil, nil, ConflictServiceConfig{ReportTTL: time.Minute})
	return svc, mock, cleanup
}

func TestRunDetectionInsertsPreservesAndRemoves(t *testing.T) {
	schedules := &scheduleReaderStub{term: []models.ScheduleDetail{
		detailEntry("a", "room-105", "inst-1", "Monday", "08:00", "10:00"),
		detailEntry("b", "room-105", "inst-2", "Monday", "09:00", "11:00"),
	}}
	// a/b already stored as Resolved; x/y is no longer backed by an overlap.
	conflicts := newConflictRepoStub(
		models.Conflict{ID: "conf-1", ScheduleAID: "a", ScheduleBID: "b", ConflictType: models.ConflictTypeRoom, Status: models.ConflictStatusResolved},
		models.Conflict{ID: "conf-2", ScheduleAID: "x", ScheduleBID: "y", ConflictType: models.ConflictTypeRoom, Status: models.ConflictStatusPending},
	)
	svc, mock, cleanup := newTestConflictService(t, schedules, conflicts)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.RunDetection(context.Background(), "2025-2026", "1st Semester")
	require.NoError(t, err)

	assert.Equal(t, 2, report.ScannedEntries)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 1, report.Preserved)
	assert.Equal(t, 1, report.Removed)
	assert.Empty(t, report.Warnings)

	require.Len(t, conflicts.upserted, 1)
	assert.Equal(t, models.ConflictStatusResolved, conflicts.upserted[0].Status)
	assert.Equal(t, []string{"conf-2"}, conflicts.deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDetectionInsertsNewConflictsAsPending(t *testing.T) {
	schedules := &scheduleReaderStub{term: []models.ScheduleDetail{
		detailEntry("a", "room-1", "inst-1", "Tuesday", "08:00", "10:00"),
		detailEntry("b", "room-1", "inst-2", "Tuesday", "09:00", "11:00"),
	}}
	conflicts := newConflictRepoStub()
	svc, mock, cleanup := newTestConflictService(t, schedules, conflicts)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.RunDetection(context.Background(), "2025-2026", "1st Semester")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)

	require.Len(t, conflicts.upserted, 1)
	assert.Equal(t, models.ConflictStatusPending, conflicts.upserted[0].Status)
	assert.Equal(t, "a", conflicts.upserted[0].ScheduleAID)
	assert.Equal(t, "b", conflicts.upserted[0].ScheduleBID)
}

func TestRunDetectionRequiresTermParams(t *testing.T) {
	svc, _, cleanup := newTestConflictService(t, &scheduleReaderStub{}, newConflictRepoStub())
	defer cleanup()

	_, err := svc.RunDetection(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRunDetectionStoresReport(t *testing.T) {
	svc, _, cleanup := newTestConflictService(t, &scheduleReaderStub{}, newConflictRepoStub())
	defer cleanup()

	_, ok := svc.LastReport("2025-2026", "1st Semester")
	assert.False(t, ok)

	// Empty term: no plan to apply, no transaction expected.
	report, err := svc.RunDetection(context.Background(), "2025-2026", "1st Semester")
	require.NoError(t, err)
	assert.Equal(t, 0, report.ScannedEntries)

	cached, ok := svc.LastReport("2025-2026", "1st Semester")
	require.True(t, ok)
	assert.Equal(t, report, cached)
}

func TestRunGroupScanOnlyTouchesScopedConflicts(t *testing.T) {
	schedules := &scheduleReaderStub{group: []models.ScheduleDetail{
		detailEntry("a", "room-1", "inst-1", "Monday", "08:00", "09:00"),
		detailEntry("b", "room-1", "inst-2", "Monday", "09:00", "10:00"),
	}}
	// Conflict between a and b is stale now (entries only touch). The p/q
	// record is outside the scanned group and must not be deleted.
	conflicts := newConflictRepoStub(
		models.Conflict{ID: "conf-1", ScheduleAID: "a", ScheduleBID: "b", ConflictType: models.ConflictTypeRoom, Status: models.ConflictStatusPending},
		models.Conflict{ID: "conf-9", ScheduleAID: "p", ScheduleBID: "q", ConflictType: models.ConflictTypeRoom, Status: models.ConflictStatusPending},
	)
	svc, mock, cleanup := newTestConflictService(t, schedules, conflicts)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.RunGroupScan(context.Background(), GroupScope{
		SchoolYear: "2025-2026",
		Semester:   "1st Semester",
		DayOfWeek:  "Monday",
		RoomID:     "room-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, []string{"conf-1"}, conflicts.deleted)
}

func TestRunGroupScanKeepsConflictsWithPartnerOutsideGroup(t *testing.T) {
	// The instructor bucket for inst-1 on Monday returns a and f. f also has
	// a resolved instructor conflict with g, which overlaps f but lives in a
	// different bucket, so this scan cannot re-detect the pair.
	schedules := &scheduleReaderStub{group: []models.ScheduleDetail{
		detailEntry("a", "room-1", "inst-1", "Monday", "08:00", "10:00"),
		detailEntry("f", "room-1", "inst-2", "Monday", "09:00", "11:00"),
	}}
	conflicts := newConflictRepoStub(
		models.Conflict{ID: "conf-fg", ScheduleAID: "f", ScheduleBID: "g", ConflictType: models.ConflictTypeInstructor, Status: models.ConflictStatusResolved},
	)
	svc, mock, cleanup := newTestConflictService(t, schedules, conflicts)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.RunGroupScan(context.Background(), GroupScope{
		SchoolYear:   "2025-2026",
		Semester:     "1st Semester",
		DayOfWeek:    "Monday",
		RoomID:       "room-1",
		InstructorID: "inst-1",
	})
	require.NoError(t, err)

	// The a/f room overlap is inserted; conf-fg survives untouched.
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 0, report.Removed)
	assert.Empty(t, conflicts.deleted)
	require.Len(t, conflicts.upserted, 1)
	assert.Equal(t, "a", conflicts.upserted[0].ScheduleAID)
	assert.Equal(t, "f", conflicts.upserted[0].ScheduleBID)
}

func TestResolveMarksPendingConflictResolved(t *testing.T) {
	conflicts := newConflictRepoStub(
		models.Conflict{ID: "conf-1", ScheduleAID: "a", ScheduleBID: "b", ConflictType: models.ConflictTypeRoom, Status: models.ConflictStatusPending},
	)
	svc, _, cleanup := newTestConflictService(t, &scheduleReaderStub{}, conflicts)
	defer cleanup()

	resolved, err := svc.Resolve(context.Background(), "conf-1")
	require.NoError(t, err)
	assert.Equal(t, models.ConflictStatusResolved, resolved.Status)
	assert.Equal(t, models.ConflictStatusResolved, conflicts.statuses["conf-1"])
}

func TestResolveRejectsAlreadyResolvedConflict(t *testing.T) {
	conflicts := newConflictRepoStub(
		models.Conflict{ID: "conf-1", ScheduleAID: "a", ScheduleBID: "b", ConflictType: models.ConflictTypeRoom, Status: models.ConflictStatusResolved},
	)
	svc, _, cleanup := newTestConflictService(t, &scheduleReaderStub{}, conflicts)
	defer cleanup()

	_, err := svc.Resolve(context.Background(), "conf-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyResolved.Code, appErrors.FromError(err).Code)
}

func TestResolveUnknownConflictReturnsNotFound(t *testing.T) {
	svc, _, cleanup := newTestConflictService(t, &scheduleReaderStub{}, newConflictRepoStub())
	defer cleanup()

	_, err := svc.Resolve(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
