package middleware

import (
	"net/http"
	"time"

	"chatforms-backend/internal/ratelimiter"

	"github.com/gin-gonic/gin"
)

// RateLimit rejects requests whose key has run out of tokens. Creators are
// keyed by user id, respondents by the response in the path, everyone else
// by client IP.
func RateLimit(l *ratelimiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(rateKey(c), time.Now()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many AI requests, try again shortly"})
			return
		}
		c.Next()
	}
}

func rateKey(c *gin.Context) string {
	if id := c.GetString(UserIDKey); id != "" {
		return "user:" + id
	}
	if _, ok := c.Get(ResponseKey); ok {
		return "response:" + c.Param("id")
	}
	return "ip:" + c.ClientIP()
}
