package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AccessLog logs one line per request and tags the active span with the
// response status.
func AccessLog(logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With(slog.String("module", "access"))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			span := trace.SpanFromContext(req.Context())
			span.SetAttributes(attribute.Int("http.status", status))

			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			}
			logger.Log(req.Context(), level, "request",
				slog.String("method", req.Method),
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}
