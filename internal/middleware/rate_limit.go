package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-annotation-api/internal/utils"
)

const (
	defaultRateLimitMax    = 10
	defaultRateLimitWindow = time.Second
)

// RateLimit caps how often one caller may hit the wrapped route within window.
// Annotators are bucketed by id so a shared NAT does not throttle a whole team.
func RateLimit(bucket string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = defaultRateLimitMax
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: func(c *fiber.Ctx) string { return bucket + ":" + rateLimitSubject(c) },
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests")
		},
	})
}

func rateLimitSubject(c *fiber.Ctx) string {
	if id, ok := c.Locals(LocalUserID).(uint); ok && id > 0 {
		return "annotator-" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip-" + c.IP()
}
