package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/p09nguyen/pntruyen2/internal/pkg/jwt"
)

const (
	rateLimitMax    = 50
	rateLimitWindow = time.Second
)

// RateLimit enforces a per-IP rate limit of 50 req/s on anonymous traffic.
// It runs before the auth middlewares, so a signed-in caller is recognized
// by verifying the token signature alone; the session and account checks
// still happen in Auth.
func RateLimit(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if carriesValidToken(c) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		windowKey := time.Now().Unix()
		key := fmt.Sprintf("pnt:rate_limit:%s:%d", ip, windowKey)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis being down should not take reads with it.
			c.Next()
			return
		}

		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		if count > rateLimitMax {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Quá nhiều yêu cầu, vui lòng thử lại sau",
			})
			return
		}

		c.Next()
	}
}

func carriesValidToken(c *gin.Context) bool {
	raw := extractToken(c)
	if raw == "" {
		return false
	}
	_, err := jwt.Parse(raw)
	return err == nil
}
