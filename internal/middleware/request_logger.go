package middleware

import (
	"time"

	"github.com/amankumarsingh77/playlist-exporter/pkg/utils"
	"github.com/labstack/echo/v4"
)

// RequestLoggerMiddleware logs one line per request once the handler returns.
func (mw *MiddlewareManager) RequestLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()
		mw.logger.Infof("RequestID: %s, IP: %s, Method: %s, URI: %s, Status: %v, Size: %v, Time: %s",
			utils.GetRequestID(c), utils.GetIPAddress(c), req.Method, req.URL.Path, res.Status, res.Size, time.Since(start))
		return nil
	}
}
