// Package ratelimit guards the WebSocket-connect and admin HTTP surfaces
// with Redis-or-memory rate limits, adapted from the teacher's
// internal/v1/ratelimit/limiter.go. There are no JWT claims in this
// domain, so every limit here is keyed by client IP rather than by
// authenticated subject.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/config"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/logging"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/metrics"
)

// RateLimiter holds the WebSocket-connect and admin-HTTP limiter
// instances, sharing one store.
type RateLimiter struct {
	wsConnect *limiter.Limiter
	adminHTTP *limiter.Limiter
	store     limiter.Store
}

// NewRateLimiter builds a RateLimiter from cfg. redisClient may be nil,
// in which case limits fall back to an in-process memory store — useful
// for single-instance development but not shared across replicas.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	wsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsConnect)
	if err != nil {
		return nil, fmt.Errorf("invalid WS connect rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "banterbus:limiter:"})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using memory store (redis disabled)")
	}

	return &RateLimiter{
		wsConnect: limiter.New(store, wsRate),
		adminHTTP: limiter.New(store, wsRate),
		store:     store,
	}, nil
}

// CheckWebSocket reports whether a new WebSocket connection from c's
// client IP is within the connect rate, writing a 429 and returning
// false if not. A failing store fails open, admitting the connection.
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	return rl.allow(c, rl.wsConnect, "websocket_connect")
}

// AdminMiddleware returns a gin middleware enforcing the admin-HTTP rate
// limit, keyed by client IP.
func (rl *RateLimiter) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c, rl.adminHTTP, c.FullPath()) {
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context, inst *limiter.Limiter, metricLabel string) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	result, err := inst.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed, failing open")
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues(metricLabel, "ip").Inc()
		c.Header("Retry-After", strconv.FormatInt(result.Reset-time.Now().Unix(), 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many requests",
			"retry_after": result.Reset,
		})
		return false
	}

	metrics.RateLimitRequests.WithLabelValues(metricLabel).Inc()
	return true
}
