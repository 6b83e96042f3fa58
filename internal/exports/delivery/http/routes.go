package http

import (
	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/middleware"
	"github.com/labstack/echo/v4"
)

func MapExportRoutes(exportGroup *echo.Group, h exports.Handler, mw *middleware.MiddlewareManager) {
	exportGroup.Use(mw.RequestLoggerMiddleware)
	exportGroup.POST("", h.CreateExport())
	exportGroup.GET("", h.CreateExport())
	exportGroup.GET("/:job_id", h.GetStatus())
	exportGroup.GET("/:job_id/artifact", h.GetArtifact())
	exportGroup.GET("/:job_id/player", h.GetPlayer())
}
