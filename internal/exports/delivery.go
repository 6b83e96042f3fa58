package exports

import "github.com/labstack/echo/v4"

type Handler interface {
	CreateExport() echo.HandlerFunc
	GetStatus() echo.HandlerFunc
	GetArtifact() echo.HandlerFunc
	GetPlayer() echo.HandlerFunc
}
