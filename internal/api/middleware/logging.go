package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/felipe/zapgate/internal/logger"
)

// LoggingMiddleware registra as requisições HTTP em log estruturado
type LoggingMiddleware struct {
	logger *logger.ComponentLogger
}

// NewLoggingMiddleware cria um novo middleware de logging
func NewLoggingMiddleware() *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: logger.ForComponent("http"),
	}
}

// RequestLogger registra método, rota, status, latência e identidade
func (m *LoggingMiddleware) RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		identity := "anonymous"
		if auth := GetAuthContext(c); auth != nil {
			if auth.IsAdmin {
				identity = "admin"
			} else if auth.Phone != "" {
				identity = auth.Phone
			}
		}

		status := c.Response().StatusCode()
		logEvent := m.logger.Info()
		if status >= 500 {
			logEvent = m.logger.Error()
		} else if status >= 400 {
			logEvent = m.logger.Warn()
		}
		if err != nil {
			logEvent = logEvent.Err(err)
		}

		logEvent.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", latency).
			Str("ip", c.IP()).
			Str("identity", identity).
			Msg("HTTP request")

		return err
	}
}
