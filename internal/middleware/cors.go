package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// CORSMiddleware lets browser players fetch artifacts by range from the
// configured origins. No origins means any origin.
func (mw *MiddlewareManager) CORSMiddleware() echo.MiddlewareFunc {
	origins := mw.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, "Range"},
		ExposeHeaders: []string{
			echo.HeaderContentLength, "Content-Range", "Accept-Ranges",
		},
		MaxAge: 300,
	})
}
