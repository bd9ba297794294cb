package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/observability"
)

// Instrumented route prefixes.
const (
	AdminPathPrefix     = "/api/v1/admin"
	AnnotatorPathPrefix = "/api/v1/annotator"
)

// Observability records request metrics and a structured log line for the admin
// and annotator surfaces. Annotator traffic is frequent, so its successful
// requests log at debug level.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		surface := surfaceOf(c.Path())
		if surface == "" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()

		observability.HTTPRequests().WithLabelValues(surface, method, route, strconv.Itoa(status)).Inc()
		observability.HTTPLatency().WithLabelValues(surface, method, route).Observe(elapsed.Seconds())

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case status >= fiber.StatusBadRequest:
			event = logger.Warn()
		case surface == "annotator":
			event = logger.Debug()
		default:
			event = logger.Info()
		}

		event = event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("surface", surface).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Dur("latency", elapsed)
		if userID, ok := c.Locals(LocalUserID).(uint); ok && userID > 0 {
			event = event.Uint("annotator_id", userID)
		}
		if size := len(c.Request().Body()); size > 0 && method != fiber.MethodGet {
			event = event.Int("body_bytes", size)
		}
		event.Msg("request completed")

		return err
	}
}

func surfaceOf(path string) string {
	switch {
	case strings.HasPrefix(path, AdminPathPrefix):
		return "admin"
	case strings.HasPrefix(path, AnnotatorPathPrefix):
		return "annotator"
	default:
		return ""
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}
