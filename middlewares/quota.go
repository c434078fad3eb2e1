package middlewares

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type QuotaRule struct {
	Limit  int           // requests allowed per window
	Window time.Duration // counter lifetime, starting at the first request
	KeyFn  func(*gin.Context) string
}

// UserQuotaKey counts per authenticated user; anonymous requests are not counted.
func UserQuotaKey(c *gin.Context) string {
	uid := c.GetInt64(UserIDKey)
	if uid == 0 {
		return ""
	}
	return fmt.Sprintf("quota:user:%d:day", uid)
}

// Quota is a fixed-window counter in Redis. The increment and the window
// expiry run in one MULTI so a counter can never outlive its window. If Redis
// is down the request is let through.
func Quota(rdb *redis.Client, rule QuotaRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.KeyFn(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		var incr *redis.IntCmd
		var ttl *redis.DurationCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, rule.Window)
			ttl = pipe.TTL(ctx, key)
			return nil
		})
		if err != nil {
			slog.WarnContext(ctx, "quota counter unavailable", "key", key, "error", err)
			c.Next()
			return
		}
		n := incr.Val()
		if int(n) > rule.Limit {
			c.Header("Retry-After", strconv.Itoa(retrySeconds(ttl.Val())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Usage quota exceeded. Please try again later.",
				"error":   "quota_exceeded",
			})
			return
		}
		c.Header("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit))
		c.Next()
	}
}

// retrySeconds rounds d up to whole seconds, at least one.
func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	return max(s, 1)
}
