package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/internal/handler"
	"github.com/iload-dev/iload-api/internal/middleware"
	"github.com/iload-dev/iload-api/internal/service"
	"github.com/iload-dev/iload-api/pkg/config"
	"github.com/iload-dev/iload-api/pkg/logger"
	corsmiddleware "github.com/iload-dev/iload-api/pkg/middleware/cors"
	reqidmiddleware "github.com/iload-dev/iload-api/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Schedules   *handler.ScheduleHandler
	Generator   *handler.ScheduleGeneratorHandler
	Conflicts   *handler.ConflictHandler
	Instructors *handler.InstructorHandler
	Rooms       *handler.RoomHandler
	Subjects    *handler.SubjectHandler
	Dashboard   *handler.DashboardHandler
}

// New builds the gin engine with middleware, operational endpoints and the
// versioned API surface.
func New(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	schedules := api.Group("/schedules")
	schedules.GET("", h.Schedules.List)
	schedules.POST("", h.Schedules.Create)
	schedules.GET("/:id", h.Schedules.Get)
	schedules.PUT("/:id", h.Schedules.Update)
	schedules.DELETE("/:id", h.Schedules.Delete)
	schedules.POST("/:id/approve", h.Schedules.Approve)
	schedules.POST("/generate", h.Generator.Generate)
	schedules.GET("/proposals/:id", h.Generator.Proposal)
	schedules.POST("/proposals/:id/save", h.Generator.Save)
	schedules.DELETE("/proposals/:id", h.Generator.Discard)

	conflicts := api.Group("/conflicts")
	conflicts.GET("", h.Conflicts.List)
	conflicts.POST("/detect", h.Conflicts.Detect)
	conflicts.GET("/report", h.Conflicts.Report)
	conflicts.POST("/:id/resolve", h.Conflicts.Resolve)

	instructors := api.Group("/instructors")
	instructors.GET("", h.Instructors.List)
	instructors.POST("", h.Instructors.Create)
	instructors.GET("/:id", h.Instructors.Get)
	instructors.PUT("/:id", h.Instructors.Update)
	instructors.DELETE("/:id", h.Instructors.Delete)

	rooms := api.Group("/rooms")
	rooms.GET("", h.Rooms.List)
	rooms.POST("", h.Rooms.Create)
	rooms.GET("/:id", h.Rooms.Get)
	rooms.PUT("/:id", h.Rooms.Update)
	rooms.DELETE("/:id", h.Rooms.Delete)

	subjects := api.Group("/subjects")
	subjects.GET("", h.Subjects.List)
	subjects.POST("", h.Subjects.Create)
	subjects.GET("/:id", h.Subjects.Get)
	subjects.PUT("/:id", h.Subjects.Update)
	subjects.DELETE("/:id", h.Subjects.Delete)

	dashboard := api.Group("/dashboard")
	dashboard.GET("/stats", h.Dashboard.Stats)
	dashboard.GET("/metrics", h.Dashboard.Metrics)

	return r
}
