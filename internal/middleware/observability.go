package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/observability"
)

// Observability records request metrics and writes one structured log line
// per API request. Health probes and scrapes are not recorded.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		if !strings.HasPrefix(path, "/api/") || strings.HasSuffix(path, "/metrics") || strings.HasSuffix(path, "/health") {
			return err
		}

		duration := time.Since(start)
		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case status == fiber.StatusUnauthorized, status == fiber.StatusTooManyRequests:
			event = logger.Info()
		case status >= fiber.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Debug()
		}

		event.Str("correlation_id", GetCorrelationID(c)).
			Str("user_id", UserID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", duration).
			Msg("request completed")
		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}
