package http

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/amankumarsingh77/playlist-exporter/pkg/httpErrors"
	"github.com/amankumarsingh77/playlist-exporter/pkg/logger"
	"github.com/amankumarsingh77/playlist-exporter/pkg/utils"
	"github.com/labstack/echo/v4"
)

var playerTemplate = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="twitter:card" content="player">
<meta name="twitter:player" content="{{.VideoURL}}">
<meta name="twitter:player:stream" content="{{.VideoURL}}">
<meta name="twitter:player:width" content="{{.Width}}">
<meta name="twitter:player:height" content="{{.Height}}">
<meta property="og:type" content="video.other">
<meta property="og:video:url" content="{{.VideoURL}}">
<meta property="og:video:width" content="{{.Width}}">
<meta property="og:video:height" content="{{.Height}}">
<meta http-equiv="refresh" content="0;URL={{.VideoURL}}">
</head>
<body>
<video src="{{.VideoURL}}" controls autoplay></video>
</body>
</html>
`))

type exportsHandler struct {
	exportsUC exports.UseCase
	logger    logger.Logger
}

func NewExportsHandler(exportsUC exports.UseCase, log logger.Logger) exports.Handler {
	return &exportsHandler{
		exportsUC: exportsUC,
		logger:    log,
	}
}

// CreateExport accepts a JSON body on POST and query parameters on GET.
func (h *exportsHandler) CreateExport() echo.HandlerFunc {
	return func(c echo.Context) error {
		input := &models.ExportInput{}
		if err := c.Bind(input); err != nil {
			return c.JSON(http.StatusBadRequest, httpErrors.NewBadRequestError("Invalid request payload"))
		}

		result, err := h.exportsUC.Intake(c.Request().Context(), input)
		if err != nil {
			h.logger.Debugf("CreateExport RequestID %s: %v", utils.GetRequestID(c), err)
			return httpErrors.ErrorResponse(c, err)
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusAccepted
		}
		return c.JSON(status, models.IntakeResponse{
			JobID:     result.Job.ID,
			State:     result.Job.State,
			StatusURL: result.StatusURL,
		})
	}
}

func (h *exportsHandler) GetStatus() echo.HandlerFunc {
	return func(c echo.Context) error {
		status, err := h.exportsUC.GetStatus(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, status)
	}
}

// GetArtifact streams the MP4 with Range support.
func (h *exportsHandler) GetArtifact() echo.HandlerFunc {
	return func(c echo.Context) error {
		artifact, err := h.exportsUC.OpenArtifact(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		defer artifact.Content.Close()

		c.Response().Header().Set(echo.HeaderContentType, "video/mp4")
		http.ServeContent(c.Response(), c.Request(), artifact.Name, artifact.ModTime, artifact.Content)
		return nil
	}
}

func (h *exportsHandler) GetPlayer() echo.HandlerFunc {
	return func(c echo.Context) error {
		page, err := h.exportsUC.GetPlayerPage(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		var buf bytes.Buffer
		if err := playerTemplate.Execute(&buf, page); err != nil {
			h.logger.Errorf("GetPlayer - Execute: %v", err)
			return httpErrors.ErrorResponse(c, err)
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	}
}
