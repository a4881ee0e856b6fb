package serverutils

import (
	"time"

	"chatedge-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger writes one entry per request. Errors are rendered here so
// the logged status is the one the client receives.
func RequestLogger(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		if err := ctx.Next(); err != nil {
			if hErr := ctx.App().ErrorHandler(ctx, err); hErr != nil {
				_ = ctx.SendStatus(fiber.StatusInternalServerError)
			}
		}

		log.Info("HTTP", "Request", map[string]interface{}{
			"method":     ctx.Method(),
			"path":       ctx.Path(),
			"status":     ctx.Response().StatusCode(),
			"ip":         ctx.IP(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}
}
