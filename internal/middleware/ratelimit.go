package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"marketstall/internal/pkg/response"
)

// RateLimiter counts requests per caller in fixed redis windows.
type RateLimiter struct {
	redis  redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

func NewRateLimiter(client redis.Cmdable, prefix string, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: client, prefix: prefix, limit: limit, window: window}
}

// Middleware rejects callers over the limit with 429. Redis failures let the
// request through; the booking engine does not depend on the limiter.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil || r.redis == nil || r.limit <= 0 {
			c.Next()
			return
		}

		key := r.key(c)
		ctx := c.Request.Context()

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("rate limiter unavailable")
			c.Next()
			return
		}
		if count == 1 {
			if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
				log.WithError(err).WithField("key", key).Warn("rate limiter expire failed")
			}
		}

		if count > r.limit {
			c.Header("Retry-After", strconv.Itoa(int(r.window.Seconds())))
			response.Abort(c, http.StatusTooManyRequests, response.CodeRateLimited, "Too many requests, please slow down")
			return
		}

		c.Next()
	}
}

func (r *RateLimiter) key(c *gin.Context) string {
	if id := c.GetInt64("user_id"); id > 0 {
		return fmt.Sprintf("ratelimit:%s:user:%d", r.prefix, id)
	}
	return fmt.Sprintf("ratelimit:%s:ip:%s", r.prefix, c.ClientIP())
}
