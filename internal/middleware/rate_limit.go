package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RequestRateLimit caps requests per caller per minute using a Redis fixed
// window. Callers are keyed by user id when authenticated, IP otherwise.
func RequestRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 100
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		caller, _ := c.Locals(userIDLocal).(string)
		if caller == "" {
			caller = c.IP()
		}
		key := "rl:req:" + caller + ":" + time.Now().UTC().Format("200601021504")

		// INCR and EXPIRE travel in one MULTI so a counter never outlives its
		// window. Re-arming the TTL is harmless: the key names the minute.
		var incr *redis.IntCmd
		_, err := cache.TxPipelined(c.UserContext(), func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(c.UserContext(), key)
			pipe.Expire(c.UserContext(), key, time.Minute)
			return nil
		})
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if incr.Val() > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
