package serverutils

import (
	"strconv"

	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimitMiddleware gates a route group by caller address.
func RateLimitMiddleware(g *ratelimit.Governor) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		key := ctx.IP()
		if g.Allow(key) {
			return ctx.Next()
		}
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(g.RetryAfterSeconds(key)))
		return ctx.Status(fiber.StatusTooManyRequests).JSON(dto.MessageResponse{Message: ratelimit.RestMessage})
	}
}
