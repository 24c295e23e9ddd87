package main

import (
	"context"
	"fmt"
	"log"

	_ "github.com/iload-dev/iload-api/api/swagger"
	"github.com/iload-dev/iload-api/internal/handler"
	"github.com/iload-dev/iload-api/internal/repository"
	"github.com/iload-dev/iload-api/internal/router"
	"github.com/iload-dev/iload-api/internal/service"
	"github.com/iload-dev/iload-api/pkg/cache"
	"github.com/iload-dev/iload-api/pkg/config"
	"github.com/iload-dev/iload-api/pkg/database"
	"github.com/iload-dev/iload-api/pkg/jobs"
	"github.com/iload-dev/iload-api/pkg/logger"
)

// @title iLoad API
// @version 0.1.0
// @description Course scheduling and conflict detection service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled)

	scheduleRepo := repository.NewScheduleRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	detector := service.NewConflictDetector(service.DefaultConflictRules(), logr)
	conflictSvc := service.NewConflictService(
		scheduleRepo,
		conflictRepo,
		detector,
		db,
		cacheSvc,
		metricsSvc,
		logr,
		service.ConflictServiceConfig{ReportTTL: cfg.Detector.ReportTTL},
	)

	scanQueue := service.NewConflictScanQueue(conflictSvc, jobs.QueueConfig{
		Workers:    cfg.Detector.ScanWorkers,
		BufferSize: cfg.Detector.ScanQueueSize,
		Logger:     logr,
	})
	scanQueue.Start(context.Background())
	defer scanQueue.Stop()
	scanTrigger := service.NewConflictScanTrigger(scanQueue, logr)

	scheduleSvc := service.NewScheduleService(scheduleRepo, scanTrigger, logr)
	generatorSvc := service.NewScheduleGeneratorService(scheduleRepo, scanTrigger, logr, service.ScheduleGeneratorConfig{
		ProposalTTL: cfg.Generator.ProposalTTL,
		SlotStep:    cfg.Generator.SlotStep,
	})
	instructorSvc := service.NewInstructorService(instructorRepo, logr)
	roomSvc := service.NewRoomService(roomRepo, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, metricsSvc, cfg.Dashboard.CacheTTL, logr)

	r := router.New(cfg, logr, db, metricsSvc, router.Handlers{
		Schedules:   handler.NewScheduleHandler(scheduleSvc),
		Generator:   handler.NewScheduleGeneratorHandler(generatorSvc),
		Conflicts:   handler.NewConflictHandler(conflictSvc, cfg.Detector.DefaultSchoolYear, cfg.Detector.DefaultSemester),
		Instructors: handler.NewInstructorHandler(instructorSvc),
		Rooms:       handler.NewRoomHandler(roomSvc),
		Subjects:    handler.NewSubjectHandler(subjectSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
