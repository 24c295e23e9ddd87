package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iload-dev/iload-api/internal/models"
)

func newConflictRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func conflictRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "schedule_a_id", "schedule_b_id", "conflict_type", "description", "recommendation", "status", "created_at", "updated_at"})
}

func TestConflictRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM conflicts WHERE 1=1 AND status = \$1 ORDER BY created_at DESC`).
		WithArgs(models.ConflictStatusPending).
		WillReturnRows(conflictRows().
			AddRow("conf-1", "a", "b", models.ConflictTypeRoom, "desc", "rec", models.ConflictStatusPending, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conflicts WHERE 1=1 AND status = \$1`).
		WithArgs(models.ConflictStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	conflicts, total, err := repo.List(context.Background(), models.ConflictFilter{Status: models.ConflictStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "conf-1", conflicts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryUpsertBatchLeavesStatusAlone(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO conflicts .+ON CONFLICT \(conflict_type, schedule_a_id, schedule_b_id\).+DO UPDATE SET description = EXCLUDED\.description, recommendation = EXCLUDED\.recommendation, updated_at = EXCLUDED\.updated_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conflicts := []models.Conflict{{
		ScheduleAID:    "a",
		ScheduleBID:    "b",
		ConflictType:   models.ConflictTypeRoom,
		Description:    "desc",
		Recommendation: "rec",
	}}
	err := repo.UpsertBatch(context.Background(), nil, conflicts)
	require.NoError(t, err)

	assert.NotEmpty(t, conflicts[0].ID)
	assert.Equal(t, models.ConflictStatusPending, conflicts[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryDeleteByIDs(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM conflicts WHERE id IN ($1, $2)")).
		WithArgs("conf-1", "conf-2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteByIDs(context.Background(), nil, []string{"conf-1", "conf-2"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryDeleteByIDsNoopOnEmpty(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	require.NoError(t, repo.DeleteByIDs(context.Background(), nil, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE conflicts SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.ConflictStatusResolved, sqlmock.AnyArg(), "conf-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "conf-1", models.ConflictStatusResolved))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryListForTermIncludesOrphans(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()
	repo := NewConflictRepository(db)

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM conflicts c.+LEFT JOIN schedules sa.+LEFT JOIN schedules sb.+sa\.id IS NULL AND sb\.id IS NULL`).
		WithArgs("2025-2026", "1st Semester").
		WillReturnRows(conflictRows().
			AddRow("conf-1", "a", "b", models.ConflictTypeRoom, "desc", "rec", models.ConflictStatusPending, now, now))

	conflicts, err := repo.ListForTerm(context.Background(), "2025-2026", "1st Semester")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
