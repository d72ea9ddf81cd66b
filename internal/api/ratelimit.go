package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/annnsvm/contactsd/internal/config"
)

// windowStore counts hits per key within a fixed window.
type windowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// redisWindow backs the limiter with redis INCR + EXPIRE. The key expires
// with the window, so counts reset without any cleanup job.
type redisWindow struct {
	client *redis.Client
}

func (w *redisWindow) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := w.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := w.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// RateLimit enforces a fixed-window per-client-IP limit. A redis outage
// fails open: throttling is not worth taking the endpoint down for.
func RateLimit(store windowStore, cfg config.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s", c.FullPath(), c.ClientIP())

		count, err := store.Incr(c.Request.Context(), key, cfg.Window)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rate limit store unavailable", slog.Any("error", err))
			c.Next()
			return
		}

		if count > int64(cfg.Requests) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Request limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// NewRedisRateLimit is the production wiring of RateLimit.
func NewRedisRateLimit(client *redis.Client, cfg config.RateLimitConfig) gin.HandlerFunc {
	return RateLimit(&redisWindow{client: client}, cfg)
}
