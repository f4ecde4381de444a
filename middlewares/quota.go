package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type QuotaRule struct {
	Limit  int                       // requests allowed per window
	Window time.Duration             // counter lifetime, starting at the first request
	KeyFn  func(*gin.Context) string // "" skips the quota
}

// Quota counts requests per key in redis and answers 429 past the limit. If
// redis is unreachable the request goes through.
func Quota(rdb *redis.Client, rule QuotaRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.KeyFn(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if n == 1 {
			_ = rdb.Expire(ctx, key, rule.Window).Err()
		}
		if int(n) > rule.Limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many registrations from this address today. Please try again tomorrow.",
			})
			return
		}
		c.Header("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit))
		c.Next()
	}
}

// SubmissionQuotaKey keys the daily submission counter by client IP and calendar day.
func SubmissionQuotaKey(loc *time.Location) func(*gin.Context) string {
	if loc == nil {
		loc = time.UTC
	}
	return func(c *gin.Context) string {
		return "quota:submit:" + c.ClientIP() + ":" + time.Now().In(loc).Format("2006-01-02")
	}
}
