package server

import (
	"net/http"

	exportsHttp "github.com/amankumarsingh77/playlist-exporter/internal/exports/delivery/http"
	exportsRepository "github.com/amankumarsingh77/playlist-exporter/internal/exports/repository"
	exportsUsecase "github.com/amankumarsingh77/playlist-exporter/internal/exports/usecase"
	"github.com/amankumarsingh77/playlist-exporter/internal/middleware"
	"github.com/amankumarsingh77/playlist-exporter/internal/worker"
	"github.com/amankumarsingh77/playlist-exporter/pkg/utils"
	"github.com/labstack/echo/v4"
)

func (s *Server) MapHandlers(e *echo.Echo) error {
	store := exportsRepository.NewMemoryStore(s.clock, s.cfg.Export.Retention)
	transcoder := worker.NewFFmpegTranscoder(s.cfg, s.logger)
	sinks := s.sinks()

	s.runner = worker.NewRunner(s.cfg, s.logger, store, transcoder, sinks, s.clock)
	s.sweeper = worker.NewSweeper(s.cfg, s.logger, store, sinks, s.runner, s.clock)

	exportsUC := exportsUsecase.NewExportsUseCase(s.cfg, store, s.runner, s.logger)
	exportsHandlers := exportsHttp.NewExportsHandler(exportsUC, s.logger)

	mw := middleware.NewMiddlewareManager(s.cfg.Server.AllowOrigins, s.logger)
	e.Use(mw.CORSMiddleware())

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	exportGroup := v1.Group("/exports")

	exportsHttp.MapExportRoutes(exportGroup, exportsHandlers, mw)
	health.GET("", func(c echo.Context) error {
		s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
		active, err := exportsUC.ActiveJobs(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"status": "ERROR"})
		}
		resp := map[string]interface{}{
			"status":      "OK",
			"version":     s.cfg.Server.AppVersion,
			"active_jobs": active,
			"converting":  s.runner.Running(),
		}
		if usage, err := utils.CPUUsage(); err == nil {
			resp["cpu_usage"] = usage
		}
		return c.JSON(http.StatusOK, resp)
	})
	return nil
}

// sinks attaches only the integrations that were connected; a nil client must
// not become a non-nil interface.
func (s *Server) sinks() worker.Sinks {
	var sinks worker.Sinks
	if s.redisClient != nil {
		sinks.Redis = exportsRepository.NewExportRedisRepo(s.redisClient,
			s.cfg.Redis.StatusPrefix, s.cfg.Redis.StatusChannel, s.cfg.Redis.StatusTTL)
	}
	if s.s3Client != nil {
		sinks.AWS = exportsRepository.NewAwsRepository(s.s3Client, s.cfg.S3.OutputBucket)
	}
	if s.db != nil {
		sinks.History = exportsRepository.NewHistoryRepo(s.db)
	}
	return sinks
}
