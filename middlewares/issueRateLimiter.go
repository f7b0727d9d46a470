package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateWindow = 24 * time.Hour

// IssueRateLimiter caps how many issues one user can report per day. It must
// run after AuthMiddleware. Without Redis, or when Redis fails, requests are
// let through.
func IssueRateLimiter(client *redis.Client, prefix string, limit int, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		ctx := c.Request.Context()
		userKey := prefix + ":" + u.ID.Hex()

		pipe := client.TxPipeline()
		incr := pipe.Incr(ctx, userKey)
		ttl := pipe.TTL(ctx, userKey)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.WarnContext(ctx, "issue rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		count, retryAfter := incr.Val(), ttl.Val()
		// A counter without expiry, new or left by a failed EXPIRE, gets the window.
		if retryAfter < 0 {
			if err := client.Expire(ctx, userKey, rateWindow).Err(); err != nil {
				logger.WarnContext(ctx, "failed to set rate limit window", "key", userKey, "error", err)
			}
			retryAfter = rateWindow
		}

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}
		c.Next()
	}
}
