package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/internal/models"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
)

type conflictScheduleReader interface {
	ListDetailedForTerm(ctx context.Context, schoolYear, semester string) ([]models.ScheduleDetail, error)
	ListDetailedForGroup(ctx context.Context, schoolYear, semester, dayOfWeek, roomID, instructorID string) ([]models.ScheduleDetail, error)
}

type conflictRepository interface {
	List(ctx context.Context, filter models.ConflictFilter) ([]models.Conflict, int, error)
	ListForTerm(ctx context.Context, schoolYear, semester string) ([]models.Conflict, error)
	ListByScheduleIDs(ctx context.Context, ids []string) ([]models.Conflict, error)
	FindByID(ctx context.Context, id string) (*models.Conflict, error)
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, conflicts []models.Conflict) error
	DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) error
	UpdateStatus(ctx context.Context, id string, status models.ConflictStatus) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// GroupScope narrows an incremental scan to the (room, day) and
// (instructor, day) buckets a schedule change touched.
type GroupScope struct {
	SchoolYear   string
	Semester     string
	DayOfWeek    string
	RoomID       string
	InstructorID string
}

// ConflictServiceConfig tunes detection pass behaviour.
type ConflictServiceConfig struct {
	ReportTTL time.Duration
}

// ConflictService runs detection passes and manages the stored conflict set.
type ConflictService struct {
	schedules conflictScheduleReader
	conflicts conflictRepository
	detector  *ConflictDetector
	tx        txProvider
	cache     *CacheService
	reports   *gocache.Cache
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewConflictService wires detection dependencies.
func NewConflictService(
	schedules conflictScheduleReader,
	conflicts conflictRepository,
	detector *ConflictDetector,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ConflictServiceConfig,
) *ConflictService {
	if detector == nil {
		detector = NewConflictDetector(nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = 30 * time.Minute
	}
	return &ConflictService{
		schedules: schedules,
		conflicts: conflicts,
		detector:  detector,
		tx:        tx,
		cache:     cache,
		reports:   gocache.New(cfg.ReportTTL, cfg.ReportTTL),
		metrics:   metrics,
		logger:    logger,
	}
}

// RunDetection executes a full detection pass over one term: every schedule
// entry of the (school_year, semester) tuple is scanned, new conflicts are
// inserted as Pending, re-detected ones keep their status, and stale records
// are removed.
func (s *ConflictService) RunDetection(ctx context.Context, schoolYear, semester string) (*models.DetectionReport, error) {
	if schoolYear == "" || semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolYear and semester are required")
	}

	start := time.Now()
	entries, err := s.schedules.ListDetailedForTerm(ctx, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules for detection")
	}
	existing, err := s.conflicts.ListForTerm(ctx, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing conflicts")
	}

	detected, warnings := s.detector.Detect(entries)
	plan := BuildSyncPlan(detected, existing)

	if err := s.applyPlan(ctx, plan); err != nil {
		return nil, err
	}

	report := &models.DetectionReport{
		SchoolYear:     schoolYear,
		Semester:       semester,
		ScannedEntries: len(entries),
		Detected:       len(plan.Inserts) + len(plan.Preserved),
		Inserted:       len(plan.Inserts),
		Preserved:      len(plan.Preserved),
		Removed:        len(plan.Stale),
		Warnings:       warnings,
		Duration:       time.Since(start),
		RanAt:          time.Now().UTC(),
	}
	s.reports.SetDefault(reportKey(schoolYear, semester), report)
	s.observePass(report.Duration, detected, len(plan.Stale))
	s.invalidateCaches(ctx)

	s.logger.Info("conflict detection pass finished",
		zap.String("school_year", schoolYear),
		zap.String("semester", semester),
		zap.Int("scanned", report.ScannedEntries),
		zap.Int("inserted", report.Inserted),
		zap.Int("preserved", report.Preserved),
		zap.Int("removed", report.Removed),
		zap.Int("warnings", len(warnings)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// RunGroupScan re-evaluates only the (room, day) and (instructor, day)
// buckets named by the scope. Schedule edits enqueue these instead of a full
// term rescan. Stale pruning only covers conflicts whose both members are in
// the scanned group; pairs with a member outside it, and records orphaned on
// both sides, are left for the next full pass.
func (s *ConflictService) RunGroupScan(ctx context.Context, scope GroupScope) (*models.DetectionReport, error) {
	if scope.SchoolYear == "" || scope.Semester == "" || scope.DayOfWeek == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group scan scope requires schoolYear, semester and dayOfWeek")
	}

	start := time.Now()
	entries, err := s.schedules.ListDetailedForGroup(ctx, scope.SchoolYear, scope.Semester, scope.DayOfWeek, scope.RoomID, scope.InstructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule group for scan")
	}

	ids := make([]string, 0, len(entries))
	scanned := make(map[string]bool, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
		scanned[e.ID] = true
	}
	var existing []models.Conflict
	if len(ids) > 0 {
		touching, err := s.conflicts.ListByScheduleIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflicts for scanned group")
		}
		// Only pairs fully inside the scanned group can be re-detected here.
		// A conflict with one member outside the group may still overlap, so
		// it must not be treated as stale by this scan.
		for _, c := range touching {
			if scanned[c.ScheduleAID] && scanned[c.ScheduleBID] {
				existing = append(existing, c)
			}
		}
	}

	detected, warnings := s.detector.Detect(entries)
	plan := BuildSyncPlan(detected, existing)

	if err := s.applyPlan(ctx, plan); err != nil {
		return nil, err
	}

	report := &models.DetectionReport{
		SchoolYear:     scope.SchoolYear,
		Semester:       scope.Semester,
		ScannedEntries: len(entries),
		Detected:       len(plan.Inserts) + len(plan.Preserved),
		Inserted:       len(plan.Inserts),
		Preserved:      len(plan.Preserved),
		Removed:        len(plan.Stale),
		Warnings:       warnings,
		Duration:       time.Since(start),
		RanAt:          time.Now().UTC(),
	}
	s.observePass(report.Duration, detected, len(plan.Stale))
	s.invalidateCaches(ctx)
	return report, nil
}

// List returns conflicts with pagination, served from cache when possible.
func (s *ConflictService) List(ctx context.Context, filter models.ConflictFilter) ([]models.Conflict, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	filter.Page = page
	filter.PageSize = size

	type cachedList struct {
		Items []models.Conflict `json:"items"`
		Total int               `json:"total"`
	}
	key := fmt.Sprintf("conflicts:list:%s:%s:%d:%d", filter.Status, filter.Type, page, size)
	var cached cachedList
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
	}

	items, total, err := s.conflicts.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conflicts")
	}
	_ = s.cache.Set(ctx, key, cachedList{Items: items, Total: total}, 0)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Resolve marks a conflict Resolved. Resolving an already-resolved record is
// rejected so accidental double submissions are visible to the caller.
func (s *ConflictService) Resolve(ctx context.Context, id string) (*models.Conflict, error) {
	conflict, err := s.conflicts.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conflict not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflict")
	}
	if conflict.Status == models.ConflictStatusResolved {
		return nil, appErrors.ErrAlreadyResolved
	}
	if err := s.conflicts.UpdateStatus(ctx, id, models.ConflictStatusResolved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve conflict")
	}
	conflict.Status = models.ConflictStatusResolved
	s.invalidateCaches(ctx)
	return conflict, nil
}

// LastReport returns the most recent full-pass report for a term, if one is
// still within its TTL.
func (s *ConflictService) LastReport(schoolYear, semester string) (*models.DetectionReport, bool) {
	value, ok := s.reports.Get(reportKey(schoolYear, semester))
	if !ok {
		return nil, false
	}
	report, ok := value.(*models.DetectionReport)
	return report, ok
}

// applyPlan writes one detection pass atomically: upserts keep Resolved
// statuses because status is excluded from the conflict-target update.
func (s *ConflictService) applyPlan(ctx context.Context, plan SyncPlan) error {
	if len(plan.Inserts) == 0 && len(plan.Preserved) == 0 && len(plan.Stale) == 0 {
		return nil
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin detection transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upserts := make([]models.Conflict, 0, len(plan.Inserts)+len(plan.Preserved))
	upserts = append(upserts, plan.Inserts...)
	upserts = append(upserts, plan.Preserved...)
	if err = s.conflicts.UpsertBatch(ctx, tx, upserts); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert conflicts")
		return err
	}

	if len(plan.Stale) > 0 {
		staleIDs := make([]string, 0, len(plan.Stale))
		for _, c := range plan.Stale {
			staleIDs = append(staleIDs, c.ID)
		}
		if err = s.conflicts.DeleteByIDs(ctx, tx, staleIDs); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove stale conflicts")
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit detection pass")
		return err
	}
	return nil
}

func (s *ConflictService) observePass(duration time.Duration, detected []DetectedConflict, removed int) {
	if s.metrics == nil {
		return
	}
	byType := make(map[models.ConflictType]int)
	for _, d := range detected {
		byType[d.Type]++
	}
	s.metrics.ObserveDetectionPass(duration, byType, removed)
}

func (s *ConflictService) invalidateCaches(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, "conflicts:*")
	_ = s.cache.Invalidate(ctx, "dashboard:*")
}

func reportKey(schoolYear, semester string) string {
	return schoolYear + "|" + semester
}
