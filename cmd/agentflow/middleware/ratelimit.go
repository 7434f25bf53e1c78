package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimit caps requests per second across the whole control plane with
// an in-process token bucket. Burst equals the per-second limit.
func RateLimit(perSecond int) echo.MiddlewareFunc {
	limiter := rate.NewLimiter(rate.Limit(perSecond), perSecond)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if perSecond <= 0 {
				return next(c)
			}
			if !limiter.Allow() {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}
