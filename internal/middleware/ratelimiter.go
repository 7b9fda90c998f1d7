package middleware

import (
	"net/http"
	"time"

	"khoomi-api-io/taxonomy/config"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// KhoomiRateLimiter limits requests per client IP. Counters live in redis so
// every API instance shares them; without a client they are kept in memory.
func KhoomiRateLimiter(client *redis.Client, cfg config.RateLimitConfig) gin.HandlerFunc {
	limit := uint(cfg.PerSecond)
	if limit == 0 {
		limit = 5
	}

	var store ratelimit.Store
	if client != nil {
		store = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: client,
			Rate:        time.Second,
			Limit:       limit,
		})
	} else {
		store = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  time.Second,
			Limit: limit,
		})
	}

	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}
