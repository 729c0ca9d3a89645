package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RateLimit throttles endpoint per client address. It is a no-op when the
// limiter is absent or disabled.
func (s *Server) RateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		res := s.limiter.Allow(c.Request.Context(), endpoint, c.ClientIP())
		if res == nil || res.Allowed {
			c.Next()
			return
		}

		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		retry := int(math.Ceil(res.RetryAfter.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		AbortWithError(c, ErrRateLimited)
	}
}
